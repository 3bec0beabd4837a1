// Package report prints attack results to a terminal.
package report

import (
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/attack"
)

// A Console reports every decided byte as one line and the whole secret as
// a table at the end.
type Console struct {
	w        io.Writer
	expected []byte
	table    bool

	target  func(a ...any) string
	guess   func(a ...any) string
	good    func(a ...any) string
	warn    func(a ...any) string
	bad     func(a ...any) string
	bold    func(format string, a ...any) string
	printed bool
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{
		w:      w,
		table:  true,
		target: color.New(color.FgYellow).SprintFunc(),
		guess:  color.New(color.FgCyan).SprintFunc(),
		good:   color.New(color.FgGreen).SprintFunc(),
		warn:   color.New(color.FgYellow).SprintFunc(),
		bad:    color.New(color.FgRed).SprintFunc(),
		bold:   color.New(color.Bold).SprintfFunc(),
	}
}

// WithExpected sets the secret the guesses are compared to.
func (c *Console) WithExpected(secret []byte) *Console {
	c.expected = secret
	return c
}

// WithoutTable suppresses the summary table.
func (c *Console) WithoutTable() *Console {
	c.table = false
	return c
}

func (c *Console) header() {
	if c.printed {
		return
	}

	c.printed = true

	if c.expected != nil {
		output(c.w, "MemAddr ~ StrOffset ~ TargetChar <-?-- "+
			"GuessResult(Char, Dec, Hits)\n")
		return
	}

	output(c.w, "MemAddr ~ StrOffset <-?-- GuessResult(Char, Dec, Hits)\n")
}

// ReportByte prints one decided byte.
func (c *Console) ReportByte(b attack.ByteResult) {
	c.header()

	target := ""
	if b.Offset < len(c.expected) {
		target = fmt.Sprintf(" ~ TC(%s)",
			c.target(string(printable(c.expected[b.Offset]))))
	}

	output(c.w, "MA[0x%x] ~ SO(%d)%s <-?-- GR(%s, %d, %d) %s\n",
		b.Address, b.Offset, target,
		c.guess(string(printable(b.Value))), b.Value, b.Hits,
		c.verdict(b.Verdict))
}

// ReportDone prints the recovered secret and the summary table.
func (c *Console) ReportDone(r attack.Result) {
	output(c.w, "Guessed: %s\n", c.guess(printableString(r.Secret())))

	if c.expected != nil {
		output(c.w, "Accuracy: %s\n",
			c.bold("%.1f%%", 100*r.Accuracy(c.expected)))
	}

	if n := len(r.Inconclusive()); n > 0 {
		output(c.w, "Inconclusive offsets: %s\n", c.bad(n))
	}

	if c.table {
		c.summary(r)
	}
}

func (c *Console) summary(r attack.Result) {
	tbl := tablewriter.NewWriter(c.w)
	tbl.SetHeader([]string{
		"Offset", "Address", "Expected", "Guess", "Dec", "Hits",
		"Runner-up", "Verdict",
	})
	tbl.SetBorder(true)

	for _, b := range r.Bytes {
		expected := "-"
		if b.Offset < len(c.expected) {
			expected = string(printable(c.expected[b.Offset]))
		}

		tbl.Append([]string{
			fmt.Sprint(b.Offset),
			fmt.Sprintf("0x%x", b.Address),
			expected,
			string(printable(b.Value)),
			fmt.Sprint(b.Value),
			fmt.Sprint(b.Hits),
			fmt.Sprintf("%d (%d)", b.RunnerUp.Value, b.RunnerUp.Count),
			b.Verdict.String(),
		})
	}

	tbl.Render()
}

func (c *Console) verdict(v aggregate.Verdict) string {
	switch v {
	case aggregate.Clear:
		return c.good(v.String())
	case aggregate.Unclear:
		return c.warn(v.String())
	default:
		return c.bad(v.String())
	}
}

func printable(b byte) byte {
	if b < 0x20 || b >= 0x7f {
		return '?'
	}

	return b
}

func printableString(s []byte) string {
	out := make([]byte, len(s))
	for i, b := range s {
		out[i] = printable(b)
	}

	return string(out)
}

// output the given message with formatting.
func output(w io.Writer, format string, a ...any) {
	_, err := fmt.Fprintf(w, format, a...)
	if err != nil {
		log.Println("output error", err.Error())
	}
}
