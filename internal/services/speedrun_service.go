package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	stderrors "errors"

	"github.com/dpetrov/speedrun-tracker/internal/gate"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/auth"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/kafka"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/redis"
	"github.com/dpetrov/speedrun-tracker/internal/models"
	"github.com/dpetrov/speedrun-tracker/internal/ranking"
	"github.com/dpetrov/speedrun-tracker/internal/repository"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const (
	gamesCacheKey    = "games:all"
	approvedCacheKey = "speedruns:approved"
	cacheTTL         = 5 * time.Minute
)

type SpeedrunService interface {
	Register(ctx context.Context, username, password, confirmPassword string) error
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, userID int32) error
	VerifySession(ctx context.Context, userID int32) (*models.User, error)
	AddGame(ctx context.Context, name string) (*models.Game, error)
	ListGames(ctx context.Context) ([]models.Game, error)
	Submit(ctx context.Context, p gate.Proposal) (*models.Submission, error)
	ApprovedSpeedruns(ctx context.Context) ([]models.Submission, error)
	SpeedrunByPageURL(ctx context.Context, pageURL string) (*models.Submission, error)
	SubmissionsByAuthor(ctx context.Context, author string) ([]models.Submission, error)
	AwaitingSubmissions(ctx context.Context) ([]models.Submission, error)
	Manage(ctx context.Context, actor string, id int32, approve bool) error
	Delete(ctx context.Context, actor string, id int32) error
	ModerationTrail(ctx context.Context, submissionID int32) ([]models.ModerationEntry, error)
}

type speedrunService struct {
	userRepo       repository.UserRepository
	gameRepo       repository.GameRepository
	submissionRepo repository.SubmissionRepository
	moderationRepo repository.ModerationLogRepository
	redisClient    redis.RedisClient
	kafkaProducer  kafka.KafkaProducer
	tokens         *auth.TokenManager
	gate           *gate.Gate
}

func NewSpeedrunService(
	userRepo repository.UserRepository,
	gameRepo repository.GameRepository,
	submissionRepo repository.SubmissionRepository,
	moderationRepo repository.ModerationLogRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	tokens *auth.TokenManager,
	clock gate.Clock,
) *speedrunService {
	s := &speedrunService{
		userRepo:       userRepo,
		gameRepo:       gameRepo,
		submissionRepo: submissionRepo,
		moderationRepo: moderationRepo,
		redisClient:    redisClient,
		kafkaProducer:  kafkaProducer,
		tokens:         tokens,
	}
	s.gate = gate.New(&gateStore{games: gameRepo, submissions: submissionRepo}, clock)
	return s
}

// gateStore adapts the repositories to the admission gate's read surface.
type gateStore struct {
	games       repository.GameRepository
	submissions repository.SubmissionRepository
}

func (g *gateStore) SubmissionsByAuthor(ctx context.Context, author string) ([]models.Submission, error) {
	return g.submissions.ListByAuthor(ctx, author)
}

func (g *gateStore) SubmissionNameExists(ctx context.Context, name string) (bool, error) {
	return g.submissions.NameExists(ctx, name)
}

func (g *gateStore) SubmissionURLExists(ctx context.Context, url string) (bool, error) {
	return g.submissions.URLExists(ctx, url)
}

func (g *gateStore) GameExists(ctx context.Context, name string) (bool, error) {
	_, err := g.games.GetByName(ctx, name)
	if stderrors.Is(err, pkgerrors.ErrGameNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *speedrunService) Register(ctx context.Context, username, password, confirmPassword string) error {
	tracer := otel.Tracer("speedrun-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if password != confirmPassword {
		span.SetStatus(codes.Error, "password mismatch")
		return pkgerrors.ErrPasswordMismatch
	}
	if len(username) < 5 {
		span.SetStatus(codes.Error, "username too short")
		return pkgerrors.ErrUsernameTooShort
	}
	if len(password) < 10 {
		span.SetStatus(codes.Error, "password too short")
		return pkgerrors.ErrPasswordTooShort
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if existing != nil {
		span.SetStatus(codes.Error, "username already exists")
		slog.Warn("username already exists", "username", username, "existing_id", existing.ID)
		return pkgerrors.ErrUsernameExists
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user check failed")
		slog.Error("failed to check user existence", "username", username, "error", err)
		return fmt.Errorf("%w: failed to check user existence", pkgerrors.ErrInternal)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "username", username, "error", err)
		return fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      false,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, pkgerrors.ErrUsernameExists) {
			span.SetStatus(codes.Error, "username already exists")
			return err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user in DB", "username", username, "error", err)
		return fmt.Errorf("%w: failed to create user", pkgerrors.ErrInternal)
	}

	slog.Info("user registered successfully", "user_id", user.ID, "username", username)
	return nil
}

func (s *speedrunService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("speedrun-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			slog.Warn("login for unknown user", "username", username)
			return "", pkgerrors.ErrUserNotFound
		}
		slog.Error("failed to login", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to load user", pkgerrors.ErrInternal)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.IsAdmin)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to generate session token", "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%d:token", user.ID), token, auth.SessionTTL); err != nil {
		span.RecordError(err)
		slog.Error("failed to cache session token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to store session", pkgerrors.ErrInternal)
	}

	slog.Info("user logged in", "username", username, "user_id", user.ID)
	return token, nil
}

func (s *speedrunService) Logout(ctx context.Context, userID int32) error {
	if err := s.redisClient.Del(ctx, fmt.Sprintf("user:%d:token", userID)); err != nil {
		slog.Error("failed to revoke session token", "user_id", userID, "error", err)
		return err
	}
	slog.Info("user logged out", "user_id", userID)
	return nil
}

func (s *speedrunService) VerifySession(ctx context.Context, userID int32) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *speedrunService) AddGame(ctx context.Context, name string) (*models.Game, error) {
	tracer := otel.Tracer("speedrun-service")
	ctx, span := tracer.Start(ctx, "AddGame")
	defer span.End()

	game := &models.Game{Name: strings.ToUpper(name)}

	existing, err := s.gameRepo.GetByName(ctx, game.Name)
	if existing != nil {
		span.SetStatus(codes.Error, "game already exists")
		return nil, pkgerrors.ErrGameExists
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrGameNotFound) {
		span.RecordError(err)
		slog.Error("failed to check game existence", "name", game.Name, "error", err)
		return nil, fmt.Errorf("%w: failed to check game existence", pkgerrors.ErrInternal)
	}

	if err := s.gameRepo.Create(ctx, game); err != nil {
		if stderrors.Is(err, pkgerrors.ErrGameExists) {
			return nil, err
		}
		span.RecordError(err)
		slog.Error("failed to create game", "name", game.Name, "error", err)
		return nil, fmt.Errorf("%w: failed to create game", pkgerrors.ErrInternal)
	}

	if err := s.redisClient.Del(ctx, gamesCacheKey); err != nil {
		slog.Error("failed to invalidate games cache", "error", err)
	}

	slog.Info("game added", "id", game.ID, "name", game.Name)
	return game, nil
}

func (s *speedrunService) ListGames(ctx context.Context) ([]models.Game, error) {
	if cached, err := s.redisClient.Get(ctx, gamesCacheKey); err == nil {
		var games []models.Game
		uerr := json.Unmarshal([]byte(cached), &games)
		if uerr == nil {
			return games, nil
		}
		slog.Error("failed to unmarshal cached games", "error", uerr)
	}

	games, err := s.gameRepo.List(ctx)
	if err != nil {
		slog.Error("failed to list games", "error", err)
		return nil, err
	}

	if data, err := json.Marshal(games); err == nil {
		if err := s.redisClient.Set(ctx, gamesCacheKey, string(data), cacheTTL); err != nil {
			slog.Error("failed to cache games", "error", err)
		}
	}
	return games, nil
}

func (s *speedrunService) Submit(ctx context.Context, p gate.Proposal) (*models.Submission, error) {
	tracer := otel.Tracer("speedrun-service")
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()

	sub, err := s.gate.Admit(ctx, p)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("submission rejected by admission gate", "author", p.Author, "name", p.Name, "error", err)
		return nil, err
	}

	if err := s.submissionRepo.Create(ctx, sub); err != nil {
		// The unique indexes catch the duplicate race the pre-checks
		// cannot: report it the same way.
		if stderrors.Is(err, pkgerrors.ErrNameExists) || stderrors.Is(err, pkgerrors.ErrURLExists) {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.RecordError(err)
		slog.Error("failed to persist submission", "author", p.Author, "name", p.Name, "error", err)
		return nil, fmt.Errorf("%w: failed to persist submission", pkgerrors.ErrInternal)
	}

	s.produceEvent(sub.ID, p.Author, "submission_accepted")

	slog.Info("submission accepted", "id", sub.ID, "author", sub.Author, "game", sub.Game)
	return sub, nil
}

func (s *speedrunService) ApprovedSpeedruns(ctx context.Context) ([]models.Submission, error) {
	tracer := otel.Tracer("speedrun-service")
	ctx, span := tracer.Start(ctx, "ApprovedSpeedruns")
	defer span.End()

	if cached, err := s.redisClient.Get(ctx, approvedCacheKey); err == nil {
		var subs []models.Submission
		uerr := json.Unmarshal([]byte(cached), &subs)
		if uerr == nil {
			return subs, nil
		}
		slog.Error("failed to unmarshal cached speedruns", "error", uerr)
	}

	subs, err := s.submissionRepo.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to list approved submissions", "error", err)
		return nil, err
	}

	sorted, err := ranking.SortByDate(subs, ranking.NewerFirst)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to sort approved submissions", "error", err)
		return nil, err
	}

	if data, err := json.Marshal(sorted); err == nil {
		if err := s.redisClient.Set(ctx, approvedCacheKey, string(data), cacheTTL); err != nil {
			slog.Error("failed to cache approved speedruns", "error", err)
		}
	}
	return sorted, nil
}

// SpeedrunByPageURL resolves a submission from a frontend page URL of
// the form ".../speedrun?id=<id>". An unknown or malformed id yields a
// nil submission, not an error.
func (s *speedrunService) SpeedrunByPageURL(ctx context.Context, pageURL string) (*models.Submission, error) {
	idx := strings.Index(pageURL, "=")
	if idx < 0 {
		return nil, nil
	}
	id, err := strconv.ParseInt(pageURL[idx+1:], 10, 32)
	if err != nil {
		return nil, nil
	}

	sub, err := s.submissionRepo.GetByID(ctx, int32(id))
	if stderrors.Is(err, pkgerrors.ErrSubmissionNotFound) {
		return nil, nil
	}
	if err != nil {
		slog.Error("failed to load submission", "id", id, "error", err)
		return nil, err
	}
	return sub, nil
}

func (s *speedrunService) SubmissionsByAuthor(ctx context.Context, author string) ([]models.Submission, error) {
	return s.submissionRepo.ListByAuthor(ctx, author)
}

func (s *speedrunService) AwaitingSubmissions(ctx context.Context) ([]models.Submission, error) {
	return s.submissionRepo.ListByStatus(ctx, models.StatusAwaiting)
}

func (s *speedrunService) Manage(ctx context.Context, actor string, id int32, approve bool) error {
	tracer := otel.Tracer("speedrun-service")
	ctx, span := tracer.Start(ctx, "Manage")
	defer span.End()

	status := models.Decide(approve)
	if err := s.submissionRepo.SetStatus(ctx, id, status); err != nil {
		if stderrors.Is(err, pkgerrors.ErrSubmissionNotFound) {
			span.SetStatus(codes.Error, "submission not found")
			return err
		}
		span.RecordError(err)
		slog.Error("failed to set submission status", "id", id, "status", status, "error", err)
		return fmt.Errorf("%w: failed to set submission status", pkgerrors.ErrInternal)
	}

	if err := s.redisClient.Del(ctx, approvedCacheKey); err != nil {
		slog.Error("failed to invalidate approved cache", "error", err)
	}

	event := "submission_rejected"
	if approve {
		event = "submission_approved"
	}
	s.produceEvent(id, actor, event)

	slog.Info("submission moderated", "id", id, "status", status, "actor", actor)
	return nil
}

func (s *speedrunService) Delete(ctx context.Context, actor string, id int32) error {
	tracer := otel.Tracer("speedrun-service")
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	if err := s.submissionRepo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, pkgerrors.ErrSubmissionNotFound) {
			span.SetStatus(codes.Error, "submission not found")
			return err
		}
		span.RecordError(err)
		slog.Error("failed to delete submission", "id", id, "error", err)
		return fmt.Errorf("%w: failed to delete submission", pkgerrors.ErrInternal)
	}

	if err := s.redisClient.Del(ctx, approvedCacheKey); err != nil {
		slog.Error("failed to invalidate approved cache", "error", err)
	}

	s.produceEvent(id, actor, "submission_deleted")

	slog.Info("submission deleted", "id", id, "actor", actor)
	return nil
}

// ModerationTrail returns the audit log entries the event consumer has
// recorded for one submission, oldest first.
func (s *speedrunService) ModerationTrail(ctx context.Context, submissionID int32) ([]models.ModerationEntry, error) {
	return s.moderationRepo.ListBySubmission(ctx, submissionID)
}

// produceEvent sends a submission lifecycle event asynchronously with a
// few retries; event delivery never fails the request.
func (s *speedrunService) produceEvent(submissionID int32, actor, eventType string) {
	event := kafka.Event{
		EventType:    eventType,
		SubmissionID: submissionID,
		Actor:        actor,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal kafka event", "submission_id", submissionID, "error", err)
		return
	}

	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.kafkaProducer.Send(context.Background(), "submissions", int64(submissionID), eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send submission event after retries", "submission_id", submissionID, "event_type", eventType)
	}()
}
