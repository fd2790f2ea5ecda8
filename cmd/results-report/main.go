package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/logger"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/storage"
)

func main() {
	examFlag := flag.String("exam", "", "exam ID to report on")
	flag.Parse()

	examID, err := uuid.Parse(*examFlag)
	if err != nil {
		color.Red("Usage: results-report -exam <exam-uuid>")
		os.Exit(2)
	}

	cfg := config.Load()
	// Keep stdout for the report.
	log := logger.Setup("warn", "pretty")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer stores.Close()

	exam, err := stores.Exams.GetByID(ctx, examID)
	if err != nil {
		log.Fatal().Err(err).Str("exam_id", examID.String()).Msg("Failed to load exam")
	}

	results, err := stores.Results.ListByExam(ctx, examID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load results")
	}

	writeReport(os.Stdout, exam, results)
}

// writeReport prints the exam header, one row per result (best score first)
// and a pass-rate footer.
func writeReport(w io.Writer, exam *model.Exam, results []model.ExamResult) {
	fmt.Fprintln(w, color.CyanString("\n=== %s ===", exam.Title))
	fmt.Fprintf(w, "Status: %s  Total marks: %d  Passing: %d%%\n\n", exam.Status, exam.TotalMarks, exam.PassingMarks)

	if len(results) == 0 {
		fmt.Fprintln(w, color.YellowString("No submissions yet."))
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Student", "Score", "Percentage", "Status", "Time (min)", "Submitted"})

	passed := 0
	for i, r := range results {
		status := color.RedString(string(r.Status))
		if r.Status == model.ResultStatusPassed {
			status = color.GreenString(string(r.Status))
			passed++
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			strconv.Itoa(r.StudentID),
			fmt.Sprintf("%d/%d", r.Score, r.TotalMarks),
			fmt.Sprintf("%.2f%%", r.Percentage),
			status,
			strconv.Itoa(r.TimeTaken),
			r.SubmittedAt.Format(time.RFC3339),
		})
	}
	table.Render()

	fmt.Fprintf(w, "\nSubmitted: %d  Passed: %d  Pass rate: %.1f%%\n",
		len(results), passed, float64(passed)*100/float64(len(results)))
}
