package store

//di:injectable
type Users map[string]int
