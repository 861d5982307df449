package demo

var (
	Vowels     = []string{"a", "e", "i", "o", "u"}
	Consonants = []string{"b", "c", "d", "f", "g", "h", "j", "k", "l", "m", "n", "p", "q", "r", "s", "t", "v", "w", "x", "y", "z"}

	// Genres are built as prefix + invented word + suffix, e.g. "Hard-Bolura-Rock".
	GenrePrefixes = []string{"Indi-", "Hard-", ""}
	GenreSuffixes = []string{"-Rock", "-Metal", ""}

	// Festivals start between noon and 22:30, on the hour or half past.
	StageHours   = []int{12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22}
	StageMinutes = []int{0, 30}
)
