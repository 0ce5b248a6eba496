package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/university-library/internal/application"
	"github.com/example/university-library/internal/ledger"
)

type stubAuthService struct {
	result      application.AuthenticateResult
	authErr     error
	logoutToken string
	gotParams   application.AuthenticateParams
}

func (s *stubAuthService) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.gotParams = params
	if s.authErr != nil {
		return application.AuthenticateResult{}, s.authErr
	}
	return s.result, nil
}

func (s *stubAuthService) Logout(_ context.Context, token string) error {
	s.logoutToken = token
	return nil
}

type stubCatalogService struct {
	book     application.Book
	books    []application.Book
	err      error
	gotQuery application.BookQuery
	gotCreate application.CreateBookParams
	gotUpdate application.UpdateBookParams
}

func (s *stubCatalogService) CreateBook(_ context.Context, params application.CreateBookParams) (application.Book, error) {
	s.gotCreate = params
	return s.book, s.err
}

func (s *stubCatalogService) UpdateBook(_ context.Context, params application.UpdateBookParams) (application.Book, error) {
	s.gotUpdate = params
	return s.book, s.err
}

func (s *stubCatalogService) DeleteBook(context.Context, application.Principal, string) error {
	return s.err
}

func (s *stubCatalogService) GetBook(context.Context, string) (application.Book, error) {
	return s.book, s.err
}

func (s *stubCatalogService) ListBooks(_ context.Context, query application.BookQuery) ([]application.Book, error) {
	s.gotQuery = query
	return s.books, s.err
}

func (s *stubCatalogService) DownloadResource(context.Context, string) (application.Book, error) {
	return s.book, s.err
}

type stubLendingService struct {
	loan           application.Loan
	reservation    application.Reservation
	err            error
	cancelledID    string
	loansMemberID  string
	gotBorrow      application.BorrowParams
	gotReturn      application.ReturnParams
}

func (s *stubLendingService) Borrow(_ context.Context, params application.BorrowParams) (application.Loan, error) {
	s.gotBorrow = params
	return s.loan, s.err
}

func (s *stubLendingService) Return(_ context.Context, params application.ReturnParams) (application.Loan, error) {
	s.gotReturn = params
	return s.loan, s.err
}

func (s *stubLendingService) Reserve(context.Context, application.ReserveParams) (application.Reservation, error) {
	return s.reservation, s.err
}

func (s *stubLendingService) CancelReservation(_ context.Context, params application.CancelReservationParams) error {
	s.cancelledID = params.ReservationID
	return s.err
}

func (s *stubLendingService) MemberLoans(_ context.Context, _ application.Principal, memberID string) ([]application.Loan, error) {
	s.loansMemberID = memberID
	return []application.Loan{s.loan}, s.err
}

func (s *stubLendingService) MemberReservations(context.Context, application.Principal, string) ([]application.Reservation, error) {
	return []application.Reservation{s.reservation}, s.err
}

type stubCardService struct {
	card      ledger.LibraryCard
	err       error
	gotIssue  application.IssueCardParams
	gotStatus application.SetCardStatusParams
}

func (s *stubCardService) IssueCard(_ context.Context, params application.IssueCardParams) (ledger.LibraryCard, error) {
	s.gotIssue = params
	return s.card, s.err
}

func (s *stubCardService) SetCardStatus(_ context.Context, params application.SetCardStatusParams) (ledger.LibraryCard, error) {
	s.gotStatus = params
	return s.card, s.err
}

type stubAssistantService struct {
	answer   application.AssistantAnswer
	err      error
	gotQuery application.AssistantQueryParams
	gotRecs  application.RecommendationsParams
}

func (s *stubAssistantService) Query(_ context.Context, params application.AssistantQueryParams) (application.AssistantAnswer, error) {
	s.gotQuery = params
	return s.answer, s.err
}

func (s *stubAssistantService) Recommendations(_ context.Context, params application.RecommendationsParams) (application.AssistantAnswer, error) {
	s.gotRecs = params
	return s.answer, s.err
}

func withPrincipal(principal application.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestAuthHandler(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		service := &stubAuthService{result: application.AuthenticateResult{
			Member:  application.Member{ID: "member-1", Name: "Ada", Email: "ada@example.edu", Role: ledger.RoleStudent},
			Session: application.Session{Token: "token-1", ExpiresAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		}}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		body := strings.NewReader(`{"email":"Ada@Example.edu","password":"secret-pass"}`)
		req := httptest.NewRequest(http.MethodPost, "/sessions", body)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.gotParams.Email != "ada@example.edu" {
			t.Fatalf("expected normalized email, got %q", service.gotParams.Email)
		}
		if recorder.Header().Get("X-Session-Token") != "token-1" {
			t.Fatalf("expected session token header, got %q", recorder.Header().Get("X-Session-Token"))
		}
		cookieSet := false
		for _, cookie := range recorder.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.Value == "token-1" {
				cookieSet = true
			}
		}
		if !cookieSet {
			t.Fatal("expected session_token cookie to be set")
		}

		var resp loginResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode login response: %v", err)
		}
		if resp.Token != "token-1" || resp.Member.ID != "member-1" {
			t.Fatalf("unexpected login response: %+v", resp)
		}
	})

	t.Run("invalid credentials map to 401", func(t *testing.T) {
		t.Parallel()

		service := &stubAuthService{authErr: application.ErrInvalidCredentials}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"a@b.c","password":"nope"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if resp := decodeError(t, recorder); resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("expected AUTH_INVALID_CREDENTIALS, got %q", resp.ErrorCode)
		}
	})

	t.Run("logout revokes the session and clears the cookie", func(t *testing.T) {
		t.Parallel()

		service := &stubAuthService{}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
		req.Header.Set("Authorization", "Bearer token-1")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
		if service.logoutToken != "token-1" {
			t.Fatalf("expected logout with token-1, got %q", service.logoutToken)
		}
		cleared := false
		for _, cookie := range recorder.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Fatal("expected session_token cookie to be cleared")
		}
	})

	t.Run("login rejects non-POST methods", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Auth: NewAuthHandler(&stubAuthService{}, nil)})
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/sessions", nil))

		if recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", recorder.Code)
		}
	})
}

func TestBookHandler(t *testing.T) {
	t.Parallel()

	adminPrincipal := application.Principal{MemberID: "admin-1", Role: ledger.RoleAdmin}

	t.Run("create forwards the book input", func(t *testing.T) {
		t.Parallel()

		service := &stubCatalogService{book: application.Book{ID: "book-1", Title: "Microeconomics", Author: "Varian", Status: ledger.StatusAvailable}}
		router := NewRouter(RouterConfig{
			Books:      NewBookHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(adminPrincipal)},
		})

		body := strings.NewReader(`{"title":" Microeconomics ","author":"Varian","category":"Economics","publish_year":2014}`)
		req := httptest.NewRequest(http.MethodPost, "/books", body)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.gotCreate.Principal != adminPrincipal {
			t.Fatalf("expected admin principal, got %+v", service.gotCreate.Principal)
		}
		if service.gotCreate.Input.Title != "Microeconomics" || service.gotCreate.Input.PublishYear != 2014 {
			t.Fatalf("unexpected input: %+v", service.gotCreate.Input)
		}
	})

	t.Run("maps authorization errors to 403", func(t *testing.T) {
		t.Parallel()

		service := &stubCatalogService{err: application.ErrUnauthorized}
		router := NewRouter(RouterConfig{Books: NewBookHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"title":"x","author":"y"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", recorder.Code)
		}
		if resp := decodeError(t, recorder); resp.ErrorCode != "AUTH_FORBIDDEN" {
			t.Fatalf("expected AUTH_FORBIDDEN, got %q", resp.ErrorCode)
		}
	})

	t.Run("maps validation errors to 422 with field details", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"title": "title is required"}}
		service := &stubCatalogService{err: vErr}
		router := NewRouter(RouterConfig{Books: NewBookHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		resp := decodeError(t, recorder)
		if resp.ErrorCode != "VALIDATION_FAILED" || resp.Errors["title"] != "title is required" {
			t.Fatalf("unexpected validation response: %+v", resp)
		}
	})

	t.Run("list parses query parameters", func(t *testing.T) {
		t.Parallel()

		service := &stubCatalogService{}
		router := NewRouter(RouterConfig{Books: NewBookHandler(service, nil)})

		req := httptest.NewRequest(http.MethodGet, "/books?search=algebra&category=Math&status=AVAILABLE&publish_year=2019&sort=author&order=DESC", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		query := service.gotQuery
		if query.Search != "algebra" || query.Category != "Math" || query.Status != ledger.StatusAvailable {
			t.Fatalf("unexpected query: %+v", query)
		}
		if query.PublishYear == nil || *query.PublishYear != 2019 {
			t.Fatalf("expected publish year 2019, got %v", query.PublishYear)
		}
		if query.Sort != application.SortByAuthor {
			t.Fatalf("expected author sort, got %q", query.Sort)
		}
		if query.Order != application.SortDescending {
			t.Fatalf("expected descending order, got %q", query.Order)
		}
	})

	t.Run("download is routed as a subresource", func(t *testing.T) {
		t.Parallel()

		pdf := "https://cdn.example.edu/calc.pdf"
		service := &stubCatalogService{book: application.Book{ID: "book-1", IsDigital: true, PDFURL: &pdf, DownloadCount: 4}}
		router := NewRouter(RouterConfig{Books: NewBookHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/books/book-1/download", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		var resp bookResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Book.DownloadCount != 4 {
			t.Fatalf("expected download count 4, got %d", resp.Book.DownloadCount)
		}
	})

	t.Run("not digital maps to 409", func(t *testing.T) {
		t.Parallel()

		service := &stubCatalogService{err: application.ErrNotDigital}
		router := NewRouter(RouterConfig{Books: NewBookHandler(service, nil)})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/books/book-1/download", nil))

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if resp := decodeError(t, recorder); resp.ErrorCode != "NOT_DIGITAL" {
			t.Fatalf("expected NOT_DIGITAL, got %q", resp.ErrorCode)
		}
	})
}

func TestLendingHandler(t *testing.T) {
	t.Parallel()

	student := application.Principal{MemberID: "member-1", Role: ledger.RoleStudent}

	t.Run("borrow creates a loan", func(t *testing.T) {
		t.Parallel()

		due := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
		service := &stubLendingService{loan: application.Loan{ID: "loan-1", BookID: "book-1", MemberID: "member-1", DueAt: due}}
		router := NewRouter(RouterConfig{
			Lending:    NewLendingHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(student)},
		})

		req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(`{"book_id":"book-1"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.gotBorrow.Principal != student || service.gotBorrow.BookID != "book-1" {
			t.Fatalf("unexpected borrow params: %+v", service.gotBorrow)
		}
		var resp loanResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Loan.DueAt == "" || resp.Loan.ReturnedAt != "" {
			t.Fatalf("unexpected loan payload: %+v", resp.Loan)
		}
	})

	t.Run("borrow limit maps to 409 with a stable code", func(t *testing.T) {
		t.Parallel()

		service := &stubLendingService{err: &ledger.LimitError{MemberID: "member-1", Role: ledger.RoleStudent, OpenLoans: 3, Limit: 3}}
		router := NewRouter(RouterConfig{Lending: NewLendingHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(`{"book_id":"book-1"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if resp := decodeError(t, recorder); resp.ErrorCode != "BORROW_LIMIT_REACHED" {
			t.Fatalf("expected BORROW_LIMIT_REACHED, got %q", resp.ErrorCode)
		}
	})

	t.Run("return forwards the optional member override", func(t *testing.T) {
		t.Parallel()

		service := &stubLendingService{loan: application.Loan{ID: "loan-1"}}
		router := NewRouter(RouterConfig{Lending: NewLendingHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/loans/return", strings.NewReader(`{"book_id":"book-1","member_id":"member-2"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if service.gotReturn.BookID != "book-1" || service.gotReturn.MemberID != "member-2" {
			t.Fatalf("unexpected return params: %+v", service.gotReturn)
		}
	})

	t.Run("cancel reservation resolves the path identifier", func(t *testing.T) {
		t.Parallel()

		service := &stubLendingService{}
		router := NewRouter(RouterConfig{Lending: NewLendingHandler(service, nil)})

		req := httptest.NewRequest(http.MethodDelete, "/reservations/res-9", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
		if service.cancelledID != "res-9" {
			t.Fatalf("expected res-9, got %q", service.cancelledID)
		}
	})

	t.Run("cancel by non-holder maps to 403", func(t *testing.T) {
		t.Parallel()

		service := &stubLendingService{err: ledger.ErrNotReservationHolder}
		router := NewRouter(RouterConfig{Lending: NewLendingHandler(service, nil)})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodDelete, "/reservations/res-9", nil))

		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", recorder.Code)
		}
		if resp := decodeError(t, recorder); resp.ErrorCode != "NOT_RESERVATION_HOLDER" {
			t.Fatalf("expected NOT_RESERVATION_HOLDER, got %q", resp.ErrorCode)
		}
	})

	t.Run("member loans are routed under the member resource", func(t *testing.T) {
		t.Parallel()

		service := &stubLendingService{loan: application.Loan{ID: "loan-1", MemberID: "member-7"}}
		router := NewRouter(RouterConfig{
			Members: NewMemberHandler(nil, nil, nil),
			Lending: NewLendingHandler(service, nil),
		})

		req := httptest.NewRequest(http.MethodGet, "/members/member-7/loans", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if service.loansMemberID != "member-7" {
			t.Fatalf("expected member-7, got %q", service.loansMemberID)
		}
	})
}

func TestMemberHandler(t *testing.T) {
	t.Parallel()

	admin := application.Principal{MemberID: "admin-1", Role: ledger.RoleAdmin}

	t.Run("issue card returns the new card", func(t *testing.T) {
		t.Parallel()

		issued := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		cards := &stubCardService{card: ledger.LibraryCard{
			Number:    "card-1",
			IssuedAt:  issued,
			ExpiresAt: issued.AddDate(0, 0, 365),
			Status:    ledger.CardActive,
		}}
		router := NewRouter(RouterConfig{
			Members:    NewMemberHandler(&stubMemberService{}, cards, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodPost, "/members/member-1/card", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if cards.gotIssue.MemberID != "member-1" {
			t.Fatalf("expected member-1, got %q", cards.gotIssue.MemberID)
		}
		var resp cardResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Card == nil || resp.Card.Status != "ACTIVE" {
			t.Fatalf("unexpected card payload: %+v", resp.Card)
		}
	})

	t.Run("card status update normalizes the requested state", func(t *testing.T) {
		t.Parallel()

		cards := &stubCardService{card: ledger.LibraryCard{Number: "card-1", Status: ledger.CardSuspended}}
		router := NewRouter(RouterConfig{Members: NewMemberHandler(&stubMemberService{}, cards, nil)})

		req := httptest.NewRequest(http.MethodPut, "/members/member-1/card", strings.NewReader(`{"status":"suspended"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if cards.gotStatus.Status != ledger.CardSuspended {
			t.Fatalf("expected SUSPENDED, got %q", cards.gotStatus.Status)
		}
	})

	t.Run("card already issued maps to 409", func(t *testing.T) {
		t.Parallel()

		cards := &stubCardService{err: ledger.ErrCardAlreadyIssued}
		router := NewRouter(RouterConfig{Members: NewMemberHandler(&stubMemberService{}, cards, nil)})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/members/member-1/card", nil))

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if resp := decodeError(t, recorder); resp.ErrorCode != "CARD_ALREADY_ISSUED" {
			t.Fatalf("expected CARD_ALREADY_ISSUED, got %q", resp.ErrorCode)
		}
	})

	t.Run("create forwards the member input", func(t *testing.T) {
		t.Parallel()

		service := &stubMemberService{member: application.Member{ID: "member-1", Name: "Ada", Role: ledger.RoleStudent}}
		router := NewRouter(RouterConfig{
			Members:    NewMemberHandler(service, &stubCardService{}, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(admin)},
		})

		body := strings.NewReader(`{"name":"Ada","email":"ada@example.edu","password":"secret-pass","role":"student"}`)
		req := httptest.NewRequest(http.MethodPost, "/members", body)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.gotCreate.Input.Role != ledger.RoleStudent {
			t.Fatalf("expected role normalized to STUDENT, got %q", service.gotCreate.Input.Role)
		}
	})
}

type stubMemberService struct {
	member    application.Member
	members   []application.Member
	err       error
	gotCreate application.CreateMemberParams
}

func (s *stubMemberService) CreateMember(_ context.Context, params application.CreateMemberParams) (application.Member, error) {
	s.gotCreate = params
	return s.member, s.err
}

func (s *stubMemberService) UpdateMember(context.Context, application.UpdateMemberParams) (application.Member, error) {
	return s.member, s.err
}

func (s *stubMemberService) GetMember(context.Context, application.Principal, string) (application.Member, error) {
	return s.member, s.err
}

func (s *stubMemberService) ListMembers(context.Context, application.Principal) ([]application.Member, error) {
	return s.members, s.err
}

func (s *stubMemberService) DeleteMember(context.Context, application.Principal, string) error {
	return s.err
}

func TestAssistantHandler(t *testing.T) {
	t.Parallel()

	student := application.Principal{MemberID: "member-1", Role: ledger.RoleStudent}

	t.Run("query returns the assistant answer", func(t *testing.T) {
		t.Parallel()

		service := &stubAssistantService{answer: application.AssistantAnswer{Text: "Try the microeconomics shelf."}}
		router := NewRouter(RouterConfig{
			Assistant:  NewAssistantHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(student)},
		})

		req := httptest.NewRequest(http.MethodPost, "/assistant/queries", strings.NewReader(`{"question":"  What should I read for econ 101?  "}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if service.gotQuery.Question != "What should I read for econ 101?" {
			t.Fatalf("expected trimmed question, got %q", service.gotQuery.Question)
		}
		var resp assistantAnswerResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Answer != "Try the microeconomics shelf." || resp.Fallback {
			t.Fatalf("unexpected answer payload: %+v", resp)
		}
	})

	t.Run("recommendations default to the caller", func(t *testing.T) {
		t.Parallel()

		service := &stubAssistantService{answer: application.AssistantAnswer{Text: "ok", Fallback: true}}
		router := NewRouter(RouterConfig{
			Assistant:  NewAssistantHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(student)},
		})

		req := httptest.NewRequest(http.MethodPost, "/assistant/recommendations", strings.NewReader(`{}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if service.gotRecs.MemberID != "member-1" {
			t.Fatalf("expected caller member, got %q", service.gotRecs.MemberID)
		}
		var resp assistantAnswerResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.Fallback {
			t.Fatal("expected fallback flag to be set")
		}
	})
}
