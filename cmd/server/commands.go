package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"proposalmate/internal/auth"
	"proposalmate/internal/billing"
	"proposalmate/internal/config"
	"proposalmate/internal/database"
	"proposalmate/internal/export"
	"proposalmate/internal/handlers"
	"proposalmate/internal/lib/sl"
	"proposalmate/internal/mailer"
	"proposalmate/internal/middleware"
	"proposalmate/internal/models"
	"proposalmate/internal/proposal"
	"proposalmate/internal/repository"
	"proposalmate/internal/server"
)

const shutdownTimeout = 15 * time.Second

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "proposalmate",
		Short:         "ProposalMate API server",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(
		ServeCmd(),
		IndexesCmd(),
		PromoteCmd(),
	)

	return root
}

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func IndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(_ *config.Config, log *slog.Logger, db *mongo.Database) error {
				if err := newRepos(db).ensureIndexes(cmd.Context()); err != nil {
					return err
				}
				log.Info("indexes ensured")
				return nil
			})
		},
	}
}

func PromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(_ *config.Config, log *slog.Logger, db *mongo.Database) error {
				found, err := repository.NewUserRepo(db).SetRole(cmd.Context(), args[0], models.RoleAdmin)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no user with email %s", args[0])
				}
				log.Info("user promoted", slog.String("email", args[0]))
				return nil
			})
		},
	}
}

type repos struct {
	users       *repository.UserRepo
	proposals   *repository.ProposalRepo
	resets      *repository.ResetTokenRepo
	acceptances *repository.AcceptanceRepo
}

func newRepos(db *mongo.Database) repos {
	return repos{
		users:       repository.NewUserRepo(db),
		proposals:   repository.NewProposalRepo(db),
		resets:      repository.NewResetTokenRepo(db),
		acceptances: repository.NewAcceptanceRepo(db),
	}
}

func (r repos) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for name, ensure := range map[string]func(context.Context) error{
		"users":       r.users.EnsureIndexes,
		"proposals":   r.proposals.EnsureIndexes,
		"resets":      r.resets.EnsureIndexes,
		"acceptances": r.acceptances.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return nil
}

// withDatabase loads config, connects and runs fn. A database that cannot be
// reached is an error for every command.
func withDatabase(ctx context.Context, fn func(*config.Config, *slog.Logger, *mongo.Database) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := sl.New(cfg.Env)

	db, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Error("failed to connect to MongoDB", sl.Err(err))
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.Disconnect(ctx, db); err != nil {
			log.Warn("failed to disconnect from MongoDB", sl.Err(err))
		}
	}()

	return fn(cfg, log, db)
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withDatabase(ctx, func(cfg *config.Config, log *slog.Logger, db *mongo.Database) error {
		log.Info("starting proposalmate", slog.String("config", cfg.String()))

		rp := newRepos(db)
		if err := rp.ensureIndexes(ctx); err != nil {
			log.Warn("failed to ensure indexes", sl.Err(err))
		}

		tokens := auth.NewTokenMaker(cfg.JWT.Secret, cfg.JWT.Expire)
		mail := mailer.New(cfg.Mail.ResendAPIKey, cfg.Mail.From, log)
		proposals := proposal.NewService(rp.proposals, rp.acceptances, log)

		var provider billing.Provider
		if cfg.BillingEnabled() {
			provider = billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
		} else {
			log.Warn("STRIPE_SECRET_KEY not set, billing endpoints are disabled")
		}
		billingSvc := billing.NewService(provider, rp.users, billing.Options{
			PriceID:   cfg.Stripe.PriceID,
			TrialDays: cfg.Stripe.TrialDays,
			ClientURL: cfg.ClientURL,
		}, log)

		shared := handlers.NewSharedHandler(proposals, rp.users, mail, log)
		router := server.NewRouter(server.Deps{
			Log:            log,
			Tokens:         tokens,
			Users:          rp.users,
			AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
			AuthLimiter:    middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRPS, cfg.HTTP.AuthRateLimitBurst),
			Metrics:        middleware.NewMetrics(),
			Auth: handlers.NewAuthHandler(rp.users, rp.resets, tokens, mail, handlers.AuthConfig{
				ClientURL:     cfg.ClientURL,
				TokenTTL:      cfg.JWT.Expire,
				SecureCookies: cfg.Env == config.EnvProduction,
			}, log),
			Proposals: handlers.NewProposalHandler(proposals,
				export.New(export.Options{DocxFullContent: cfg.DocxFullContent}),
				mail, cfg.ClientURL, log),
			Shared:  shared,
			Billing: handlers.NewBillingHandler(billingSvc, log),
			Admin:   handlers.NewAdminHandler(rp.users, log),
		})

		srv := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
			log.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", sl.Err(err))
		}
		shared.Wait()
		return nil
	})
}
