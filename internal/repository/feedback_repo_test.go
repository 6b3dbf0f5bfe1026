package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

func TestFeedbackRepositoryListNewestFirst(t *testing.T) {
	db := openTestDB(t, &models.FeedbackRecord{})
	repo := NewFeedbackRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, user := range []string{"u1", "u2", "u1"} {
		record := &models.FeedbackRecord{
			QuestionID:          "Q1",
			UserID:              user,
			Source:              models.FeedbackSourceText,
			TotalMarksAvailable: 10,
			TotalMarksAwarded:   i,
			DetailedMarking: datatypes.NewJSONSlice([]ai.MarkingPoint{
				{Criterion: "clarity", MaxMark: 4, AwardedMark: i},
			}),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, record))
	}

	records, total, err := repo.List(ctx, FeedbackFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	require.Equal(t, 2, records[0].TotalMarksAwarded)
	require.Equal(t, 0, records[1].TotalMarksAwarded)

	report := records[0].Report()
	require.Equal(t, "u1", report.UserID)
	require.NotNil(t, report.CreatedAt)
	require.Len(t, report.DetailedMarking, 1)
	require.Equal(t, "clarity", report.DetailedMarking[0].Criterion)
}

func TestFeedbackRepositoryPaginates(t *testing.T) {
	db := openTestDB(t, &models.FeedbackRecord{})
	repo := NewFeedbackRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.FeedbackRecord{QuestionID: "Q", UserID: "u", Source: models.FeedbackSourceImage}))
	}

	records, total, err := repo.List(ctx, FeedbackFilter{UserID: "u", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, records, 1)
}
