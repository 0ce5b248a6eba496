package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ContentGenerator abstracts the generative API the assistant forwards
// prompts to.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt, systemInstruction string) (string, error)
}

const (
	librarianInstruction = "You are the professional and knowledgeable virtual librarian of a university library. Your goal is to assist students and staff in finding academic resources, understanding borrowing policies, and promoting a culture of reading and research. Be academic yet approachable."

	queryFallback = "I'm having trouble reaching the catalog assistant right now. Please try again later or visit the library desk."

	recommendationFallback = "Browsing the catalog by your department's category is a good place to start while recommendations are unavailable."

	maxContextBooks = 50
)

// AssistantService answers free-form research questions and produces
// reading recommendations. The catalog is summarised into a context block
// so the model answers about books that actually exist here.
type AssistantService struct {
	books     BookRepository
	loans     LoanStore
	generator ContentGenerator
	logger    *slog.Logger
}

// NewAssistantService wires dependencies for the assistant service.
func NewAssistantService(books BookRepository, loans LoanStore, generator ContentGenerator) *AssistantService {
	return NewAssistantServiceWithLogger(books, loans, generator, nil)
}

// NewAssistantServiceWithLogger constructs an AssistantService with a specified logger.
func NewAssistantServiceWithLogger(books BookRepository, loans LoanStore, generator ContentGenerator, logger *slog.Logger) *AssistantService {
	return &AssistantService{
		books:     books,
		loans:     loans,
		generator: generator,
		logger:    defaultLogger(logger),
	}
}

func (s *AssistantService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssistantService", operation, attrs...)
}

// Query forwards the member's question to the model together with a catalog
// summary. A failing model call degrades to the canned fallback answer
// instead of an error: the assistant is advisory, never load-bearing.
func (s *AssistantService) Query(ctx context.Context, params AssistantQueryParams) (AssistantAnswer, error) {
	if s == nil {
		return AssistantAnswer{}, fmt.Errorf("AssistantService is nil")
	}

	question := strings.TrimSpace(params.Question)
	if question == "" {
		vErr := &ValidationError{}
		vErr.add("question", "question is required")
		return AssistantAnswer{}, vErr
	}

	logger := s.loggerWith(ctx, "Query", "member_id", params.Principal.MemberID)

	catalogContext, err := s.catalogContext(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "catalog summary failed", "error", err)
		return AssistantAnswer{Text: queryFallback, Fallback: true}, nil
	}

	prompt := fmt.Sprintf(
		"You have access to the following current catalog summary:\n%s\nAnswer the member's query politely and professionally.\nMember query: %s",
		catalogContext, question,
	)

	text, err := s.generator.GenerateContent(ctx, prompt, librarianInstruction)
	if err != nil {
		logger.WarnContext(ctx, "assistant query fell back", "error", err)
		return AssistantAnswer{Text: queryFallback, Fallback: true}, nil
	}

	logger.InfoContext(ctx, "assistant query answered")
	return AssistantAnswer{Text: text}, nil
}

// Recommendations suggests reading based on the member's lending history.
// Members may ask for their own; administrators may ask for anyone's.
func (s *AssistantService) Recommendations(ctx context.Context, params RecommendationsParams) (AssistantAnswer, error) {
	if s == nil {
		return AssistantAnswer{}, fmt.Errorf("AssistantService is nil")
	}

	memberID := params.MemberID
	if memberID == "" {
		memberID = params.Principal.MemberID
	}
	if memberID != params.Principal.MemberID && !params.Principal.IsAdmin() {
		return AssistantAnswer{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "Recommendations", "member_id", memberID)

	interests, err := s.memberInterests(ctx, memberID)
	if err != nil {
		logger.ErrorContext(ctx, "interest summary failed", "error", err)
		return AssistantAnswer{Text: recommendationFallback, Fallback: true}, nil
	}

	prompt := fmt.Sprintf(
		"Based on the following borrowing history: %q, suggest one specific genre and three types of books this member might like for academic and personal growth. Be concise.",
		interests,
	)

	text, err := s.generator.GenerateContent(ctx, prompt, librarianInstruction)
	if err != nil {
		logger.WarnContext(ctx, "recommendations fell back", "error", err)
		return AssistantAnswer{Text: recommendationFallback, Fallback: true}, nil
	}

	logger.InfoContext(ctx, "recommendations produced")
	return AssistantAnswer{Text: text}, nil
}

func (s *AssistantService) catalogContext(ctx context.Context) (string, error) {
	books, err := s.books.ListBooks(ctx, BookQuery{})
	if err != nil {
		return "", err
	}
	if len(books) > maxContextBooks {
		books = books[:maxContextBooks]
	}

	var b strings.Builder
	for _, book := range books {
		fmt.Fprintf(&b, "- %q by %s (%s, %s)\n", book.Title, book.Author, book.Category, book.Status)
	}
	if b.Len() == 0 {
		return "(the catalog is currently empty)", nil
	}
	return b.String(), nil
}

func (s *AssistantService) memberInterests(ctx context.Context, memberID string) (string, error) {
	loans, err := s.loans.ListLoansForMember(ctx, memberID)
	if err != nil {
		return "", err
	}

	titles := make([]string, 0, len(loans))
	seen := make(map[string]bool, len(loans))
	for _, loan := range loans {
		if seen[loan.BookID] {
			continue
		}
		seen[loan.BookID] = true

		book, err := s.books.GetBook(ctx, loan.BookID)
		if err != nil {
			continue
		}
		entry := book.Title
		if book.Category != "" {
			entry += " (" + book.Category + ")"
		}
		titles = append(titles, entry)
	}

	if len(titles) == 0 {
		return "no borrowing history yet", nil
	}
	return strings.Join(titles, "; "), nil
}
