package tgui

import kit "blastbot/internal/transport"

// Inline builds an inline keyboard row by row.
type Inline struct {
	rows [][]kit.Button
}

func NewInline() *Inline { return &Inline{} }

// Row appends a row. Empty rows are dropped.
func (i *Inline) Row(btn ...kit.Button) *Inline {
	row := make([]kit.Button, 0, len(btn))
	for _, b := range btn {
		if b.Text == "" || (b.Data == "" && b.URL == "") {
			continue
		}
		row = append(row, b)
	}
	if len(row) > 0 {
		i.rows = append(i.rows, row)
	}
	return i
}

func (i *Inline) Rows() [][]kit.Button { return i.rows }

// Btn creates a callback button. Use Data to build the payload.
func Btn(text, data string) kit.Button { return kit.Button{Text: text, Data: data} }

// URLBtn creates a URL button. An empty url yields a button Row drops.
func URLBtn(text, url string) kit.Button { return kit.Button{Text: text, URL: url} }

// Grid2 lays buttons out in two columns.
func Grid2(buttons []kit.Button) [][]kit.Button {
	kb := NewInline()
	for i := 0; i < len(buttons); i += 2 {
		if i+1 < len(buttons) {
			kb.Row(buttons[i], buttons[i+1])
		} else {
			kb.Row(buttons[i])
		}
	}
	return kb.Rows()
}
