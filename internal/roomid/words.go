package roomid

var languages = []string{
	"golang", "rust", "python", "kotlin", "swift", "haskell", "elixir", "erlang", "scala", "clojure",
	"ruby", "perl", "lua", "julia", "ocaml", "fortran", "cobol", "pascal", "zig", "nim",
}

var structures = []string{
	"array", "stack", "queue", "heap", "trie", "graph", "tree", "list", "deque", "bitmap",
	"bloom", "ring", "tuple", "matrix", "vector", "hashmap", "btree", "skiplist", "treap", "rope",
}

var verbs = []string{
	"parse", "merge", "sort", "hash", "fold", "map", "reduce", "zip", "split", "join",
	"shift", "swap", "probe", "scan", "walk", "fetch", "spawn", "yield", "await", "patch",
}

var adjectives = []string{
	"quick", "lazy", "greedy", "stable", "sparse", "dense", "atomic", "mutable", "pure", "eager",
	"async", "lucky", "brave", "calm", "clever", "bold", "swift", "bright", "gentle", "tidy",
}
