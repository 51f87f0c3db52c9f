package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/config"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/ui"
)

var participantsCmd = &cobra.Command{
	Use:     "participants",
	Aliases: []string{"who"},
	Short:   "List the other participants of a room",
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := requireRoom()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(config.ClientOptions{})
		if err != nil {
			return err
		}

		sess, err := joinRoom(cmd.Context(), cfg, roomID)
		if err != nil {
			return err
		}
		defer sess.Close()

		participants, err := sess.Client.GetParticipants(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(ui.TitleStyle.Render(ui.IconRoom + " " + sess.RoomID))
		fmt.Println(ui.ParticipantTable(participants, time.Now()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(participantsCmd)
}
