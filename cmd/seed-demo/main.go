package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/logger"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/service"
	"github.com/stemsi/exstem-grader/internal/storage"
)

const (
	demoTeacherID = 1
	demoStudents  = 3
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer stores.Close()

	examService := service.NewExamService(stores.Exams, stores.Cache, log)
	authService := service.NewAuthService(cfg)

	fmt.Println("=== Seeding demo exam ===")

	exam, err := examService.Create(ctx, demoTeacherID, model.CreateExamRequest{
		Title:           "General Knowledge (demo)",
		Description:     "One question of each type.",
		DurationMinutes: 20,
		PassingMarks:    60,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	questions := []model.AddQuestionRequest{
		{Text: "What is the capital of France?", Type: string(model.QuestionTypeMultipleChoice),
			Option1: "Paris", Option2: "London", Option3: "Berlin", Option4: "Madrid",
			CorrectAnswer: "Paris", Points: 10, OrderNum: 1},
		{Text: "Water boils at 100 degrees Celsius at sea level.", Type: string(model.QuestionTypeTrueFalse),
			CorrectAnswer: "true", Points: 5, OrderNum: 2},
		{Text: "Name the largest planet in the solar system.", Type: string(model.QuestionTypeShortAnswer),
			CorrectAnswer: "Jupiter", Points: 5, OrderNum: 3},
	}
	for i, req := range questions {
		if _, err := examService.AddQuestion(ctx, exam.ID, demoTeacherID, req); err != nil {
			log.Fatal().Err(err).Int("question", i+1).Msg("Failed to add question")
		}
	}

	published, err := examService.Publish(ctx, exam.ID, demoTeacherID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to publish exam")
	}
	fmt.Printf("Published exam %s (%d marks)\n", published.ID, published.TotalMarks)

	teacherToken, err := authService.GenerateToken(service.TokenTypeTeacher, demoTeacherID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}
	fmt.Printf("\nTeacher %d token:\n%s\n", demoTeacherID, teacherToken)

	for id := 1; id <= demoStudents; id++ {
		tok, err := authService.GenerateToken(service.TokenTypeStudent, 100+id)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Printf("\nStudent %d token:\n%s\n", 100+id, tok)
	}

	fmt.Println("\n=== Done ===")
}
