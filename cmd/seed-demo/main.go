package main

import (
	"context"
	"fmt"
	"time"

	"github.com/st3v1n/SchoolManager/internal/config"
	"github.com/st3v1n/SchoolManager/internal/database"
	"github.com/st3v1n/SchoolManager/internal/logger"
	"github.com/st3v1n/SchoolManager/internal/model"
	"github.com/st3v1n/SchoolManager/internal/repository"
	"github.com/st3v1n/SchoolManager/internal/service"
)

// Seeds a demo exam with a small question pool and prints a student token
// for manual testing against a fresh database.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)

	duration := 30 * time.Minute
	windowEnd := time.Now().Add(7 * 24 * time.Hour)
	exam := &model.Exam{
		Title:                "Demo Mathematics Paper",
		Subject:              "Mathematics",
		GradeLevel:           "Grade 10",
		PaperType:            model.PaperTypePractice,
		Instructions:         "Answer all assigned questions. The timer starts when you open the paper.",
		WindowEnd:            &windowEnd,
		Duration:             &duration,
		StudentQuestionLimit: 2,
		TotalMarks:           10,
		IsActive:             true,
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	questions := []struct {
		text    string
		options []string
		correct int
	}{
		{"What is 7 x 8?", []string{"54", "56", "58", "64"}, 1},
		{"What is the square root of 144?", []string{"10", "11", "12", "14"}, 2},
		{"What is 15% of 200?", []string{"20", "25", "30", "35"}, 2},
	}
	for _, q := range questions {
		question := &model.Question{
			ExamID:       exam.ID,
			QuestionText: q.text,
			QuestionType: model.QuestionTypeMultipleChoice,
			Marks:        1,
		}
		for i, text := range q.options {
			question.Options = append(question.Options, model.Option{
				OptionText: text,
				IsCorrect:  i == q.correct,
			})
		}
		if err := examRepo.CreateQuestion(ctx, question); err != nil {
			log.Fatal().Err(err).Msg("Failed to create question")
		}
	}

	authService := service.NewAuthService(cfg)
	token, err := authService.GenerateStudentToken(1, "Grade 10")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate token")
	}

	log.Info().Str("exam_id", exam.ID.String()).Msg("Demo exam seeded")
	fmt.Printf("Student token:\n%s\n", token)
}
