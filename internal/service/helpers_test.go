package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/repository"
)

const physicsSeed = `{
  "subject": "Physics",
  "questions": [
    {
      "question_id": "Q1",
      "topic": "Forces",
      "question": "State Newton's second law.",
      "max_marks": 10,
      "marking_scheme": {"clarity": 4, "accuracy": 6},
      "model_answer": "Force equals mass times acceleration."
    },
    {
      "question_id": "Q2",
      "topic": "Energy",
      "question": "Define kinetic energy.",
      "max_marks": 3,
      "marking_scheme": {"definition": 2},
      "model_answer": "Energy an object has due to its motion."
    }
  ]
}`

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func openServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Question{}, &models.FeedbackRecord{}))
	return db
}

func seededQuestionService(t *testing.T, db *gorm.DB) QuestionService {
	t.Helper()
	svc := NewQuestionService(repository.NewQuestionRepository(db), testLogger())
	_, err := svc.Seed(context.Background(), strings.NewReader(physicsSeed))
	require.NoError(t, err)
	return svc
}

func newFileHeader(t *testing.T, field, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(int64(len(data)) + 4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File[field][0]
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
