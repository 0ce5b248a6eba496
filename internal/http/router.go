package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth       *AuthHandler
	Books      *BookHandler
	Members    *MemberHandler
	Lending    *LendingHandler
	Assistant  *AssistantHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			token, rest := splitResourcePath(r.URL.Path, "/sessions/")
			if token == "" || rest != "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteSession(w, r, token)
		})
	}

	if cfg.Books != nil {
		mux.HandleFunc("/books", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Books.List(w, r)
			case http.MethodPost:
				cfg.Books.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/books/", func(w http.ResponseWriter, r *http.Request) {
			id, rest := splitResourcePath(r.URL.Path, "/books/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithBookID(r.Context(), id)
			r = r.WithContext(ctx)

			switch rest {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Books.Get(w, r)
				case http.MethodPut:
					cfg.Books.Update(w, r)
				case http.MethodDelete:
					cfg.Books.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case "download":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Books.Download(w, r)
			case "status":
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				cfg.Books.UpdateStatus(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Members != nil {
		mux.HandleFunc("/members", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Members.List(w, r)
			case http.MethodPost:
				cfg.Members.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/members/", func(w http.ResponseWriter, r *http.Request) {
			id, rest := splitResourcePath(r.URL.Path, "/members/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithMemberID(r.Context(), id)
			r = r.WithContext(ctx)

			switch rest {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Members.Get(w, r)
				case http.MethodPut:
					cfg.Members.Update(w, r)
				case http.MethodDelete:
					cfg.Members.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case "card":
				switch r.Method {
				case http.MethodPost:
					cfg.Members.IssueCard(w, r)
				case http.MethodPut:
					cfg.Members.UpdateCard(w, r)
				default:
					methodNotAllowed(w, http.MethodPost, http.MethodPut)
				}
			case "loans":
				if cfg.Lending == nil {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Lending.MemberLoans(w, r)
			case "reservations":
				if cfg.Lending == nil {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Lending.MemberReservations(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Lending != nil {
		mux.HandleFunc("/loans", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Lending.ListLoans(w, r)
			case http.MethodPost:
				cfg.Lending.Borrow(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/loans/return", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Lending.Return(w, r)
		})
		mux.HandleFunc("/reservations", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Lending.ListReservations(w, r)
			case http.MethodPost:
				cfg.Lending.Reserve(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/reservations/", func(w http.ResponseWriter, r *http.Request) {
			id, rest := splitResourcePath(r.URL.Path, "/reservations/")
			if id == "" || rest != "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			ctx := ContextWithReservationID(r.Context(), id)
			cfg.Lending.CancelReservation(w, r.WithContext(ctx))
		})
	}

	if cfg.Assistant != nil {
		mux.HandleFunc("/assistant/queries", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Assistant.Query(w, r)
		})
		mux.HandleFunc("/assistant/recommendations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Assistant.Recommendations(w, r)
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] == nil {
			continue
		}
		handler = cfg.Middleware[i](handler)
	}
	return handler
}

// splitResourcePath peels the resource identifier and an optional single
// trailing segment off a path like "/books/{id}/download".
func splitResourcePath(path, prefix string) (id, rest string) {
	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return id, rest
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
