package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/mailer"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/wfh"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	redisClient *redis.Client
	notifier    *mailer.Notifier
	engine      *wfh.Engine
	coordinator *wfh.Coordinator
	sweeper     *wfh.Sweeper

	Mux *chi.Mux
}

type Services struct {
	Notifier    *mailer.Notifier
	Engine      *wfh.Engine
	Coordinator *wfh.Coordinator
	Sweeper     *wfh.Sweeper
}

func NewHandler(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, services Services) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		redisClient: rdb,
		notifier:    services.Notifier,
		engine:      services.Engine,
		coordinator: services.Coordinator,
		sweeper:     services.Sweeper,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Get("/requests", h.GetMyRequests)
			r.Get("/arrangements", h.GetMyArrangements)
			r.Get("/team", h.GetMyTeam)
		})

		r.Route("/employees", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleHR})).Get("/", h.GetAllEmployees)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.employeeInfo)
				r.Get("/", h.GetEmployeeInfo)
				r.With(h.RequiredRole([]domain.Role{domain.RoleHR, domain.RoleManager})).Get("/arrangements", h.GetEmployeeArrangements)
				r.With(h.RequiredRole([]domain.Role{domain.RoleHR, domain.RoleManager})).Post("/revoke", h.RevokeEmployeeArrangements)
			})
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SubmitRequest)
			r.With(h.RequiredRole([]domain.Role{domain.RoleHR, domain.RoleManager})).Get("/team", h.GetTeamRequests)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.wfhRequest)
				r.Get("/", h.GetRequest)
				r.With(h.RequiredRole([]domain.Role{domain.RoleHR, domain.RoleManager})).Post("/decision", h.DecideRequest)
				r.Post("/cancel", h.CancelRequest)
				r.With(h.RequiredRole([]domain.Role{domain.RoleHR, domain.RoleManager})).Post("/revoke", h.RevokeRequest)
				r.Get("/arrangements", h.GetRequestArrangements)
				r.Delete("/arrangements/{arrangementID}", h.WithdrawArrangement)
			})
		})

		r.Route("/revocations", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleHR, domain.RoleManager}))
			r.Post("/", h.RevokeByEmail)
		})

		r.Route("/arrangements", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleHR, domain.RoleManager})).Get("/team", h.GetTeamArrangements)
		})

		r.Route("/blockouts", func(r chi.Router) {
			r.Get("/", h.GetAllBlockouts)
			r.With(h.RequiredRole([]domain.Role{domain.RoleHR})).Post("/", h.CreateBlockout)
			r.With(h.RequiredRole([]domain.Role{domain.RoleHR})).Delete("/{id}", h.DeleteBlockout)
		})

		r.Route("/sweeps", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleHR}))
			r.Post("/", h.RunSweep)
		})
	})
}
