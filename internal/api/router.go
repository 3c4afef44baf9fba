package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xfeed/xfeed/internal/auth"
	"github.com/xfeed/xfeed/internal/coordinate"
	"github.com/xfeed/xfeed/internal/dedup"
	"github.com/xfeed/xfeed/internal/store"
	"github.com/xfeed/xfeed/internal/summarize"
	"github.com/xfeed/xfeed/internal/tasks"
)

// SetupRoutes wires every handler into mux, per §6's auth column: most
// /api/... routes (including /api/admin/scrape, despite its path prefix)
// require any authenticated principal; only the follow-list, schedule, and
// admin-user-lifecycle routes require is_admin; /api/auth/login, /health,
// and /metrics are left public.
func SetupRoutes(
	mux *http.ServeMux,
	db *sql.DB,
	tweetRepo store.TweetRepository,
	summaryRepo store.SummaryRepository,
	dedupRepo store.DedupRepository,
	followRepo store.FollowRepository,
	filterRuleRepo store.FilterRuleRepository,
	userRepo store.UserRepository,
	apiKeyRepo store.APIKeyRepository,
	taskRegistry *tasks.Registry,
	coordinator *coordinate.Coordinator,
	dedupEngine *dedup.Engine,
	summariser *summarize.Summariser,
	authenticator *auth.Authenticator,
	authCfg auth.Config,
	logger *slog.Logger,
) {
	tweetHandler := NewTweetHandler(tweetRepo, summaryRepo, logger)
	scrapeHandler := NewScrapeHandler(taskRegistry, coordinator, logger)
	dedupHandler := NewDedupHandler(dedupEngine, dedupRepo, taskRegistry, logger)
	summaryHandler := NewSummaryHandler(summariser, summaryRepo, taskRegistry, logger)
	followHandler := NewFollowHandler(followRepo, logger)
	filterRuleHandler := NewFilterRuleHandler(filterRuleRepo, logger)
	scheduleHandler := NewScheduleHandler(logger)
	userHandler := NewUserHandler(userRepo, apiKeyRepo, authCfg, logger)
	healthHandler := NewHealthHandler(db, logger)

	admin := authenticator.Middleware(true)
	authed := authenticator.Middleware(false)

	// Health, always public and always 200.
	mux.HandleFunc("/health", healthHandler.Get)

	// Auth.
	mux.HandleFunc("/api/auth/login", userHandler.Login)

	// Self-service user routes, any authenticated principal.
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		authed(methodSwitch(map[string]http.HandlerFunc{
			http.MethodGet: userHandler.Me,
			http.MethodPut: userHandler.UpdatePassword,
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/users/me/password", func(w http.ResponseWriter, r *http.Request) {
		authed(http.HandlerFunc(userHandler.UpdatePassword)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/users/me/api-keys", func(w http.ResponseWriter, r *http.Request) {
		authed(methodSwitch(map[string]http.HandlerFunc{
			http.MethodGet:  userHandler.ListAPIKeys,
			http.MethodPost: userHandler.CreateAPIKey,
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/users/me/api-keys/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/users/me/api-keys/")
		authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			userHandler.DeleteAPIKey(w, r, id)
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/users/me/filters", func(w http.ResponseWriter, r *http.Request) {
		authed(methodSwitch(map[string]http.HandlerFunc{
			http.MethodGet:  filterRuleHandler.List,
			http.MethodPost: filterRuleHandler.Create,
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/users/me/filters/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/users/me/filters/")
		authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			filterRuleHandler.Delete(w, r, id)
		})).ServeHTTP(w, r)
	})

	// Tweet/feed read routes, any authenticated principal.
	mux.HandleFunc("/api/tweets", func(w http.ResponseWriter, r *http.Request) {
		authed(http.HandlerFunc(tweetHandler.List)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/tweets/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/tweets/")
		authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tweetHandler.Get(w, r, id)
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/feed", func(w http.ResponseWriter, r *http.Request) {
		authed(http.HandlerFunc(tweetHandler.Feed)).ServeHTTP(w, r)
	})

	// Summary routes, any authenticated principal.
	mux.HandleFunc("/api/summaries/batch", func(w http.ResponseWriter, r *http.Request) {
		authed(http.HandlerFunc(summaryHandler.Batch)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/summaries/stats", func(w http.ResponseWriter, r *http.Request) {
		authed(http.HandlerFunc(summaryHandler.Stats)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/summaries/tweets/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/summaries/tweets/")
		if strings.HasSuffix(rest, "/regenerate") {
			tweetID := strings.TrimSuffix(rest, "/regenerate")
			authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				summaryHandler.Regenerate(w, r, tweetID)
			})).ServeHTTP(w, r)
			return
		}
		authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			summaryHandler.GetForTweet(w, r, rest)
		})).ServeHTTP(w, r)
	})

	// Deduplication routes, any authenticated principal.
	mux.HandleFunc("/api/deduplicate/batch", func(w http.ResponseWriter, r *http.Request) {
		authed(http.HandlerFunc(dedupHandler.Batch)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/deduplicate/groups/", func(w http.ResponseWriter, r *http.Request) {
		groupID := strings.TrimPrefix(r.URL.Path, "/api/deduplicate/groups/")
		authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				dedupHandler.DeleteGroup(w, r, groupID)
				return
			}
			dedupHandler.GetGroup(w, r, groupID)
		})).ServeHTTP(w, r)
	})

	// Scrape jobs, any authenticated principal (path kept under /admin/
	// for upstream-contract compatibility; §6 marks it "user", not "admin").
	mux.HandleFunc("/api/admin/scrape", func(w http.ResponseWriter, r *http.Request) {
		authed(methodSwitch(map[string]http.HandlerFunc{
			http.MethodGet:  scrapeHandler.List,
			http.MethodPost: scrapeHandler.Create,
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/scrape/", func(w http.ResponseWriter, r *http.Request) {
		taskID := strings.TrimPrefix(r.URL.Path, "/api/admin/scrape/")
		authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				scrapeHandler.Delete(w, r, taskID)
				return
			}
			scrapeHandler.Get(w, r, taskID)
		})).ServeHTTP(w, r)
	})

	// Admin: follow list.
	mux.HandleFunc("/api/admin/scraping/follows", func(w http.ResponseWriter, r *http.Request) {
		admin(methodSwitch(map[string]http.HandlerFunc{
			http.MethodGet:  followHandler.List,
			http.MethodPost: followHandler.Add,
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/scraping/follows/", func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimPrefix(r.URL.Path, "/api/admin/scraping/follows/")
		admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				followHandler.Remove(w, r, username)
				return
			}
			followHandler.Update(w, r, username)
		})).ServeHTTP(w, r)
	})

	// Admin: schedule control.
	mux.HandleFunc("/api/admin/scraping/schedule", func(w http.ResponseWriter, r *http.Request) {
		admin(http.HandlerFunc(scheduleHandler.Get)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/scraping/schedule/enable", func(w http.ResponseWriter, r *http.Request) {
		admin(http.HandlerFunc(scheduleHandler.Enable)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/scraping/schedule/disable", func(w http.ResponseWriter, r *http.Request) {
		admin(http.HandlerFunc(scheduleHandler.Disable)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/scraping/schedule/interval", func(w http.ResponseWriter, r *http.Request) {
		admin(http.HandlerFunc(scheduleHandler.UpdateInterval)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/scraping/schedule/next-run", func(w http.ResponseWriter, r *http.Request) {
		admin(http.HandlerFunc(scheduleHandler.UpdateNextRun)).ServeHTTP(w, r)
	})

	// Admin: user lifecycle.
	mux.HandleFunc("/api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		admin(methodSwitch(map[string]http.HandlerFunc{
			http.MethodGet:  userHandler.ListUsers,
			http.MethodPost: userHandler.CreateUser,
		})).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
		if strings.HasSuffix(rest, "/reset-password") {
			userID := strings.TrimSuffix(rest, "/reset-password")
			admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userHandler.ResetPassword(w, r, userID)
			})).ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
}

// methodSwitch dispatches to handlers by HTTP method, replying 405 for any
// method not registered.
func methodSwitch(handlers map[string]http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}
