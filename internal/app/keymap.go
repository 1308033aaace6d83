package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeySearch     = "/"
	KeyEsc        = "esc"
	KeyEnter      = "enter"
	KeyTab        = "tab"
	KeyFavorite   = "s"
	KeyCopy       = "c"
	KeyDelete     = "d"
	KeyClearAll   = "C"
	KeyConfirmYes = "y"
	KeyConfirmNo  = "n"
)
