package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/university-library/internal/ledger"
)

type stubGenerator struct {
	reply      string
	err        error
	lastPrompt string
}

func (g *stubGenerator) GenerateContent(_ context.Context, prompt, _ string) (string, error) {
	g.lastPrompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func TestAssistantQueryIncludesCatalogContext(t *testing.T) {
	repo := newStubBookRepository(
		Book{ID: "b1", Title: "Systematic Theology", Author: "Grudem", Category: "Theology", Status: ledger.StatusAvailable},
	)
	generator := &stubGenerator{reply: "We hold one theology title."}
	service := NewAssistantService(repo, &stubLoanStore{}, generator)

	answer, err := service.Query(context.Background(), AssistantQueryParams{
		Principal: studentPrincipal,
		Question:  "What theology books do you have?",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer.Fallback {
		t.Error("expected a model answer, got fallback")
	}
	if answer.Text != "We hold one theology title." {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if !strings.Contains(generator.lastPrompt, "Systematic Theology") {
		t.Errorf("prompt is missing catalog context: %q", generator.lastPrompt)
	}
	if !strings.Contains(generator.lastPrompt, "What theology books do you have?") {
		t.Errorf("prompt is missing the question: %q", generator.lastPrompt)
	}
}

func TestAssistantQueryFallsBackOnError(t *testing.T) {
	service := NewAssistantService(newStubBookRepository(), &stubLoanStore{}, &stubGenerator{err: errors.New("upstream down")})

	answer, err := service.Query(context.Background(), AssistantQueryParams{
		Principal: studentPrincipal,
		Question:  "hello?",
	})
	if err != nil {
		t.Fatalf("Query returned error instead of fallback: %v", err)
	}
	if !answer.Fallback || answer.Text == "" {
		t.Errorf("expected fallback answer, got %+v", answer)
	}
}

func TestAssistantQueryValidation(t *testing.T) {
	service := NewAssistantService(newStubBookRepository(), &stubLoanStore{}, &stubGenerator{})

	_, err := service.Query(context.Background(), AssistantQueryParams{Principal: studentPrincipal, Question: "   "})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestRecommendationsUseBorrowingHistory(t *testing.T) {
	repo := newStubBookRepository(
		Book{ID: "b1", Title: "Microeconomics", Author: "Varian", Category: "Economics"},
	)
	loans := &stubLoanStore{loans: []Loan{{ID: "loan-1", BookID: "b1", MemberID: "member-1"}}}
	generator := &stubGenerator{reply: "Try behavioral economics next."}
	service := NewAssistantService(repo, loans, generator)

	answer, err := service.Recommendations(context.Background(), RecommendationsParams{
		Principal: studentPrincipal,
		MemberID:  "member-1",
	})
	if err != nil {
		t.Fatalf("Recommendations failed: %v", err)
	}
	if answer.Fallback {
		t.Error("expected a model answer, got fallback")
	}
	if !strings.Contains(generator.lastPrompt, "Microeconomics (Economics)") {
		t.Errorf("prompt is missing history: %q", generator.lastPrompt)
	}
}

func TestRecommendationsForOtherMemberRequiresAdmin(t *testing.T) {
	service := NewAssistantService(newStubBookRepository(), &stubLoanStore{}, &stubGenerator{})

	_, err := service.Recommendations(context.Background(), RecommendationsParams{
		Principal: studentPrincipal,
		MemberID:  "member-2",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
