package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/config"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/roomid"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"c"},
	Short:   "Chat in an interview room",
	Long: `Join an interview room and chat with everyone in it. Earlier messages are
replayed on join. Without --room a new memorable room id is generated.

Examples:
  codeshot chat --room greedy-golang-merge-trie --user alice --role interviewer
  codeshot chat --user bob --role candidate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.ClientOptions{})
		if err != nil {
			return err
		}

		roomID := flagRoom
		if roomID == "" {
			roomID = roomid.Generate()
		}

		sess, err := joinRoom(cmd.Context(), cfg, roomID)
		if err != nil {
			return err
		}
		defer sess.Close()

		fmt.Println(ui.RoomInfo{RoomID: sess.RoomID, UserID: sess.UserID, Role: sess.Role}.View())

		h := sess.Handler
		model := ui.NewChatModel(
			ui.RoomInfo{RoomID: sess.RoomID, UserID: sess.UserID, Role: sess.Role},
			ui.ChatSource{
				History:          h.History,
				Messages:         h.Messages,
				UserConnected:    h.UserConnected,
				UserDisconnected: h.UserDisconnected,
				Errors:           h.Errors,
			},
			sess.Client.SendChat,
		)
		model.ShowHistory(sess.History)

		if _, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run(); err != nil {
			return fmt.Errorf("chat UI: %w", err)
		}
		if model.Disconnected() {
			return fmt.Errorf("lost connection to %s", cfg.Server)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
