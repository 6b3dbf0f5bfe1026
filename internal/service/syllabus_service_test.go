package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/repository"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

const sampleSyllabus = "Unit 1: Forces and motion. Newton's laws, momentum, friction and terminal velocity."

type stubGenerator struct {
	questions []ai.GeneratedQuestion
	err       error
	requests  []ai.GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req ai.GenerationRequest) ([]ai.GeneratedQuestion, error) {
	g.requests = append(g.requests, req)
	return g.questions, g.err
}

type syllabusFixture struct {
	svc       SyllabusService
	generator *stubGenerator
	redis     *miniredis.Miniredis
	questions repository.QuestionRepository
}

func newSyllabusFixture(t *testing.T) syllabusFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	generator := &stubGenerator{questions: []ai.GeneratedQuestion{
		{QuestionID: "SQ1", Topic: "Forces", Question: "Define momentum.", MaxMarks: 3, MarkingScheme: ai.MarkingScheme{"definition": 2, "units": 1}, ModelAnswer: "p = mv"},
		{QuestionID: "SQ2", Topic: "Friction", Question: "What is friction?", MaxMarks: 2, MarkingScheme: ai.MarkingScheme{"definition": 2}, ModelAnswer: "A resisting force."},
	}}
	questions := repository.NewQuestionRepository(openServiceDB(t))
	svc := NewSyllabusService(generator, repository.NewSyllabusSessionRepository(client), questions, validator.New(), 10*time.Minute, 1024, testLogger())

	return syllabusFixture{svc: svc, generator: generator, redis: mr, questions: questions}
}

func TestSyllabusGenerateStoresSession(t *testing.T) {
	fx := newSyllabusFixture(t)
	ctx := context.Background()

	session, err := fx.svc.Generate(ctx, "teacher-1", dto.GenerateQuestionsRequest{Subject: "Physics", SyllabusText: sampleSyllabus, QuestionCount: 50})
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)
	require.Equal(t, "Physics", session.Subject)
	require.Len(t, session.Questions, 2)
	require.Equal(t, 10*time.Minute, session.ExpiresAt.Sub(session.CreatedAt))

	require.Len(t, fx.generator.requests, 1)
	require.Equal(t, ai.MaxQuestionCount, fx.generator.requests[0].QuestionCount)
	require.True(t, fx.redis.Exists("syllabus:session:"+session.SessionID))

	loaded, err := fx.svc.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.Questions, loaded.Questions)
}

func TestSyllabusGenerateDefaultsSubject(t *testing.T) {
	fx := newSyllabusFixture(t)

	session, err := fx.svc.Generate(context.Background(), "t", dto.GenerateQuestionsRequest{SyllabusText: sampleSyllabus})
	require.NoError(t, err)
	require.Equal(t, defaultSyllabusSubject, session.Subject)
	require.Equal(t, 1, fx.generator.requests[0].QuestionCount)
}

func TestSyllabusGeneratePropagatesErrors(t *testing.T) {
	fx := newSyllabusFixture(t)
	fx.generator.err = ai.ErrSyllabusTooShort

	_, err := fx.svc.Generate(context.Background(), "t", dto.GenerateQuestionsRequest{SyllabusText: "too short"})
	require.ErrorIs(t, err, ai.ErrSyllabusTooShort)

	_, err = fx.svc.Generate(context.Background(), "t", dto.GenerateQuestionsRequest{})
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestSyllabusGenerateFromFile(t *testing.T) {
	fx := newSyllabusFixture(t)

	session, err := fx.svc.GenerateFromFile(context.Background(), "t", dto.GenerateQuestionsRequest{Subject: "Physics", QuestionCount: 2},
		newFileHeader(t, "syllabus", "syllabus.txt", []byte(sampleSyllabus)))
	require.NoError(t, err)
	require.Len(t, session.Questions, 2)
	require.Equal(t, sampleSyllabus, fx.generator.requests[0].Syllabus)

	_, err = fx.svc.GenerateFromFile(context.Background(), "t", dto.GenerateQuestionsRequest{},
		newFileHeader(t, "syllabus", "syllabus.png", pngBytes(t)))
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)

	_, err = fx.svc.GenerateFromFile(context.Background(), "t", dto.GenerateQuestionsRequest{},
		newFileHeader(t, "syllabus", "syllabus.txt", []byte(strings.Repeat("a", 2048))))
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestSyllabusGenerateFromHTMLFile(t *testing.T) {
	fx := newSyllabusFixture(t)
	page := `<!DOCTYPE html><html><head><title>Physics</title><style>p{color:red}</style></head>` +
		`<body><h1>Unit 1: Forces</h1><p>Newton&#39;s laws, momentum &amp; friction for 2 &lt; v &lt; 5 m/s.</p>` +
		`<script>alert(1)</script></body></html>`

	_, err := fx.svc.GenerateFromFile(context.Background(), "t", dto.GenerateQuestionsRequest{Subject: "Physics"},
		newFileHeader(t, "syllabus", "syllabus.html", []byte(page)))
	require.NoError(t, err)
	require.Equal(t, "Unit 1: Forces Newton's laws, momentum & friction for 2 < v < 5 m/s.", fx.generator.requests[0].Syllabus)
}

func TestSyllabusSaveSessionWritesQuestionBank(t *testing.T) {
	fx := newSyllabusFixture(t)
	ctx := context.Background()

	session, err := fx.svc.Generate(ctx, "t", dto.GenerateQuestionsRequest{Subject: "Physics", SyllabusText: sampleSyllabus, QuestionCount: 2})
	require.NoError(t, err)

	saved, err := fx.svc.SaveSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, int64(2), saved.Saved)
	require.Len(t, saved.QuestionIDs, 2)
	require.True(t, strings.HasSuffix(saved.QuestionIDs[0], "-SQ1"))

	stored, err := fx.questions.GetByID(ctx, saved.QuestionIDs[0])
	require.NoError(t, err)
	require.Equal(t, models.QuestionSourceSyllabus, stored.Source)
	require.Equal(t, "Physics", stored.Subject)
	require.Equal(t, ai.MarkingScheme{"definition": 2, "units": 1}, stored.Scheme())

	_, err = fx.svc.GetSession(ctx, session.SessionID)
	require.ErrorIs(t, err, ErrSyllabusSessionNotFound)
}

func TestSyllabusSaveSessionDisambiguatesRepeatedIDs(t *testing.T) {
	fx := newSyllabusFixture(t)
	ctx := context.Background()
	fx.generator.questions = []ai.GeneratedQuestion{
		{QuestionID: "SQ1", Question: "Define momentum.", MaxMarks: 2, MarkingScheme: ai.MarkingScheme{"definition": 2}, ModelAnswer: "p = mv"},
		{QuestionID: "SQ1", Question: "Define friction.", MaxMarks: 2, MarkingScheme: ai.MarkingScheme{"definition": 2}, ModelAnswer: "A resisting force."},
		{QuestionID: "SQ1-2", Question: "Define inertia.", MaxMarks: 2, MarkingScheme: ai.MarkingScheme{"definition": 2}, ModelAnswer: "Resistance to change."},
	}

	session, err := fx.svc.Generate(ctx, "t", dto.GenerateQuestionsRequest{SyllabusText: sampleSyllabus, QuestionCount: 3})
	require.NoError(t, err)

	saved, err := fx.svc.SaveSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, int64(3), saved.Saved)
	require.Len(t, saved.QuestionIDs, 3)

	unique := map[string]struct{}{}
	for _, id := range saved.QuestionIDs {
		unique[id] = struct{}{}
	}
	require.Len(t, unique, 3)
	require.True(t, strings.HasSuffix(saved.QuestionIDs[1], "-SQ1-2"))
	require.True(t, strings.HasSuffix(saved.QuestionIDs[2], "-SQ1-2-3"))

	stored, err := fx.questions.GetByID(ctx, saved.QuestionIDs[1])
	require.NoError(t, err)
	require.Equal(t, "Define friction.", stored.Text)
}

func TestSyllabusSessionExpires(t *testing.T) {
	fx := newSyllabusFixture(t)
	ctx := context.Background()

	session, err := fx.svc.Generate(ctx, "t", dto.GenerateQuestionsRequest{SyllabusText: sampleSyllabus})
	require.NoError(t, err)

	fx.redis.FastForward(11 * time.Minute)

	_, err = fx.svc.GetSession(ctx, session.SessionID)
	require.ErrorIs(t, err, ErrSyllabusSessionNotFound)
	_, err = fx.svc.SaveSession(ctx, session.SessionID)
	require.ErrorIs(t, err, ErrSyllabusSessionNotFound)
}

func TestSyllabusServiceWithoutRedis(t *testing.T) {
	generator := &stubGenerator{err: errors.New("must not be called")}
	svc := NewSyllabusService(generator, nil, nil, validator.New(), 0, 0, testLogger())

	_, err := svc.Generate(context.Background(), "t", dto.GenerateQuestionsRequest{SyllabusText: sampleSyllabus})
	require.ErrorIs(t, err, ErrSessionStoreUnavailable)
	_, err = svc.GetSession(context.Background(), "abc")
	require.ErrorIs(t, err, ErrSessionStoreUnavailable)
	require.Empty(t, generator.requests)
}

func TestSessionQuestionID(t *testing.T) {
	require.Equal(t, "3f2a9c1d-SQ1", SessionQuestionID("3f2a9c1d-7b6e-4c1a-9e0f-123456789abc", "SQ1", 0))
	require.Equal(t, "abc-SQ3", SessionQuestionID("abc", " ", 2))
}
