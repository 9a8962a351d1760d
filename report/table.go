package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/sw965/kaithy/deepq"
)

type row struct {
	key   string
	value string
}

// Table は進捗をキーと値の表として端末に書き出します。
type Table struct {
	out *termenv.Output
}

// NewTable は w の端末の色数を判別します。色を付けない場合は termenv.WithProfile(termenv.Ascii) を渡します。
func NewTable(w io.Writer, opts ...termenv.OutputOption) *Table {
	return &Table{out: termenv.NewOutput(w, opts...)}
}

func (t *Table) Progress(p deepq.Progress) error {
	return t.dump([]row{
		{"steps", fmt.Sprint(p.Steps)},
		{"episodes", fmt.Sprint(p.Episodes)},
		{"mean 100 episode reward", fmt.Sprintf("%.3g", p.MeanReward)},
		{"% time spent exploring", fmt.Sprint(p.Exploring)},
		{"loss", fmt.Sprintf("%.4g", p.Loss)},
		{"elapsed", p.Elapsed.Round(time.Second).String()},
	}, "")
}

func (t *Table) Validation(v deepq.ValidationReport) error {
	status := "kept best"
	color := "3"
	if v.Saved {
		status = "saved"
		color = "2"
	}
	return t.dump([]row{
		{"validation step", fmt.Sprint(v.Step)},
		{"wins", fmt.Sprint(v.Result.Wins)},
		{"losses", fmt.Sprint(v.Result.Losses)},
		{"draws", fmt.Sprint(v.Result.Draws)},
		{"best wins", fmt.Sprintf("%d (step %d)", v.Best.Wins, v.Best.Step)},
		{"checkpoint", status},
	}, color)
}

// dump は color が空でなければ値をその色で書きます。
func (t *Table) dump(rows []row, color string) error {
	keyWidth, valueWidth := 0, 0
	for _, r := range rows {
		keyWidth = max(keyWidth, len(r.key))
		valueWidth = max(valueWidth, len(r.value))
	}
	border := strings.Repeat("-", keyWidth+valueWidth+7)

	var b strings.Builder
	b.WriteString(border + "\n")
	for _, r := range rows {
		key := t.out.String(fmt.Sprintf("%-*s", keyWidth, r.key)).Bold()
		value := t.out.String(fmt.Sprintf("%-*s", valueWidth, r.value))
		if color != "" {
			value = value.Foreground(t.out.Color(color))
		}
		fmt.Fprintf(&b, "| %s | %s |\n", key, value)
	}
	b.WriteString(border + "\n")
	_, err := io.WriteString(t.out, b.String())
	return err
}
