package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/replywatch/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no replies are shown.
	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CheckReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeNewReplies(&sb, report)
	w.writeQuestions(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with check information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CheckReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          REPLYWATCH REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Tweet:      %s\n", report.TweetURL))
	sb.WriteString(fmt.Sprintf("Author:     @%s\n", report.Username))
	sb.WriteString(fmt.Sprintf("Checked At: %s\n", report.CheckedAt.Format("2006-01-02 15:04:05 MST")))

	sb.WriteString("\n")
}

// writeSummary writes the reply count summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CheckReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("REPLY SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  TOTAL:     %d\n", report.TotalReplies))
	sb.WriteString(fmt.Sprintf("  NEW:       %d\n", report.NewCount))
	sb.WriteString(fmt.Sprintf("  QUESTIONS: %d\n", report.QuestionCount))
	sb.WriteString("\n")
}

// writeNewReplies writes replies that appeared since the previous check.
// Question replies are marked with [Q].
func (w *SimpleWriter) writeNewReplies(sb *strings.Builder, report *model.CheckReport) {
	if report.NewCount == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("NEW REPLIES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if report.NewCount == 0 {
		sb.WriteString("  No new replies\n")
	} else {
		for _, reply := range report.NewReplies {
			marker := " "
			if reply.IsQuestion {
				marker = "Q"
			}
			sb.WriteString(fmt.Sprintf("  [%s] %s (%d likes): %s\n", marker, reply.Author, reply.Likes, reply.Text))
		}
	}
	sb.WriteString("\n")
}

// writeQuestions writes every reply in the thread currently flagged as
// a question, new or not.
func (w *SimpleWriter) writeQuestions(sb *strings.Builder, report *model.CheckReport) {
	if report.QuestionCount == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("OPEN QUESTIONS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if report.QuestionCount == 0 {
		sb.WriteString("  No open questions\n")
	} else {
		for _, reply := range report.Questions {
			sb.WriteString(fmt.Sprintf("  * %s (%d likes): %s\n", reply.Author, reply.Likes, reply.Text))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by replywatch\n")
	sb.WriteString("https://github.com/nao1215/replywatch\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
