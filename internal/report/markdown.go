package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/replywatch/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CheckReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeNewReplies(md, report)
	w.writeQuestions(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with check information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CheckReport) {
	md.H1("Reply Watch Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Tweet", "`" + report.TweetURL + "`"},
			{"Author", "@" + report.Username},
			{"Checked At", report.CheckedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")
}

// writeSummary writes the reply count summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CheckReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Total Replies", strconv.Itoa(report.TotalReplies)},
			{"New Replies", strconv.Itoa(report.NewCount)},
			{"Open Questions", strconv.Itoa(report.QuestionCount)},
		},
	})
	md.PlainText("")

	if report.TotalReplies > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of questions against the
// rest of the thread.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CheckReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Questions in the Thread"),
		piechart.WithShowData(true),
	)

	if report.QuestionCount > 0 {
		chart.LabelAndIntValue("Questions", uint64(report.QuestionCount))
	}
	if other := report.TotalReplies - report.QuestionCount; other > 0 {
		chart.LabelAndIntValue("Other replies", uint64(other))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on what the check found.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CheckReport) {
	newQuestions := 0
	for _, r := range report.NewReplies {
		if r.IsQuestion {
			newQuestions++
		}
	}

	switch {
	case newQuestions > 0:
		md.Importantf("Found %d new replies that read as technical questions and may need an answer.", newQuestions)
	case report.NewCount > 0:
		md.Note(fmt.Sprintf("Found %d new replies since the last check, none of them questions.", report.NewCount))
	default:
		md.Tip("No new replies since the last check.")
	}
	md.PlainText("")
}

// writeNewReplies writes the new replies section.
func (w *MarkdownWriter) writeNewReplies(md *markdown.Markdown, report *model.CheckReport) {
	md.H2("New Replies")
	md.PlainText("")

	if report.NewCount == 0 {
		md.PlainText("No new replies.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.NewReplies))
	for i, r := range report.NewReplies {
		question := "-"
		if r.IsQuestion {
			question = "yes"
		}
		rows[i] = []string{
			r.Author,
			strconv.Itoa(r.Likes),
			question,
			truncateText(r.Text, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Author", "Likes", "Question", "Text"},
		Rows:   rows,
	})
	md.PlainText("")

	// Full text for replies the table had to truncate.
	for _, r := range report.NewReplies {
		if len([]rune(r.Text)) > 60 {
			md.Details(r.Author, r.Text)
		}
	}
	md.PlainText("")
}

// writeQuestions writes every reply in the thread currently flagged as
// a question, new or not.
func (w *MarkdownWriter) writeQuestions(md *markdown.Markdown, report *model.CheckReport) {
	md.H2("Open Questions")
	md.PlainText("")

	if report.QuestionCount == 0 {
		md.PlainText("No replies currently read as questions.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Questions))
	for i, r := range report.Questions {
		rows[i] = []string{
			r.Author,
			strconv.Itoa(r.Likes),
			truncateText(r.Text, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Author", "Likes", "Text"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [replywatch](https://github.com/nao1215/replywatch)*")
}

// truncateText truncates a string to maxRunes runes with ellipsis.
func truncateText(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
