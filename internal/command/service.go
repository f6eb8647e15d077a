package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"yearn-vaults/internal/logger"
)

// Command types
const (
	CommandTriggerSync   = "trigger_sync"
	CommandSyncVault     = "sync_vault"
	CommandClearCache    = "clear_cache"
	CommandGetSyncStatus = "get_sync_status"
)

const (
	commandChannel  = "vaults:commands"
	responsePrefix  = "vaults:responses:"
	responseTimeout = 30 * time.Second
)

var ErrUnavailable = errors.New("command bus not available")

type CommandMessage struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type CommandResponse struct {
	ID        string                 `json:"id"`
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Handler executes one command and returns its result data.
type Handler func(ctx context.Context, cmd *CommandMessage) (map[string]interface{}, error)

// Dispatcher sends a command somewhere it will be executed.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmdType string, payload map[string]interface{}) (*CommandResponse, error)
}

// Service carries commands between the api and the syncer over Redis
// Pub/Sub.
type Service struct {
	redis   *redis.Client
	log     *logger.Logger
	timeout time.Duration
}

func NewService(redisClient *redis.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{redis: redisClient, log: log, timeout: responseTimeout}
}

func (s *Service) Available() bool {
	return s != nil && s.redis != nil
}

// Serve subscribes to the command channel and runs handler for every
// command until ctx is done.
func (s *Service) Serve(ctx context.Context, handler Handler) error {
	if !s.Available() {
		s.log.Warn("⚠️  Command service: Redis not available, running in standalone mode")
		<-ctx.Done()
		return nil
	}

	pubsub := s.redis.Subscribe(ctx, commandChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", commandChannel, err)
	}
	s.log.Info("✅ Command service started, listening on %s", commandChannel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var cmd CommandMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
				s.log.Warn("Error unmarshaling command: %v", err)
				continue
			}

			go s.execute(ctx, handler, &cmd)
		}
	}
}

func (s *Service) execute(ctx context.Context, handler Handler, cmd *CommandMessage) {
	s.log.Info("📨 Command %s (%s)", cmd.Type, cmd.ID)

	resp := Execute(ctx, handler, cmd)
	if err := s.SendResponse(ctx, resp); err != nil {
		s.log.Error("❌ Failed to respond to %s: %v", cmd.ID, err)
	}
}

// Execute runs handler and wraps the outcome in a response.
func Execute(ctx context.Context, handler Handler, cmd *CommandMessage) *CommandResponse {
	resp := &CommandResponse{ID: cmd.ID, Timestamp: time.Now().UTC()}

	data, err := handler(ctx, cmd)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Success = true
	resp.Data = data
	return resp
}

// Dispatch publishes a command and waits for its response.
func (s *Service) Dispatch(ctx context.Context, cmdType string, payload map[string]interface{}) (*CommandResponse, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	cmd := NewCommand(cmdType, payload)
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	// subscribe first so a fast responder cannot be missed
	pubsub := s.redis.Subscribe(ctx, responsePrefix+cmd.ID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe response: %w", err)
	}

	receivers, err := s.redis.Publish(ctx, commandChannel, data).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to publish command: %w", err)
	}
	if receivers == 0 {
		return nil, fmt.Errorf("%w: no syncer is listening", ErrUnavailable)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg, err := pubsub.ReceiveMessage(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("command timeout")
		}
		return nil, err
	}

	var resp CommandResponse
	if err := json.Unmarshal([]byte(msg.Payload), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

func (s *Service) SendResponse(ctx context.Context, resp *CommandResponse) error {
	if !s.Available() {
		return nil
	}

	respData, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := s.redis.Publish(ctx, responsePrefix+resp.ID, respData).Err(); err != nil {
		return fmt.Errorf("failed to publish response: %w", err)
	}

	return nil
}

func NewCommand(cmdType string, payload map[string]interface{}) *CommandMessage {
	return &CommandMessage{
		ID:        uuid.NewString(),
		Type:      cmdType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// LocalDispatcher runs commands in-process when no Redis is configured.
type LocalDispatcher struct {
	Handler Handler
}

func (d LocalDispatcher) Dispatch(ctx context.Context, cmdType string, payload map[string]interface{}) (*CommandResponse, error) {
	if d.Handler == nil {
		return nil, ErrUnavailable
	}
	return Execute(ctx, d.Handler, NewCommand(cmdType, payload)), nil
}

// FallbackDispatcher sends to Primary and runs Secondary when no one
// serves Primary.
type FallbackDispatcher struct {
	Primary   Dispatcher
	Secondary Dispatcher
}

func (d FallbackDispatcher) Dispatch(ctx context.Context, cmdType string, payload map[string]interface{}) (*CommandResponse, error) {
	resp, err := d.Primary.Dispatch(ctx, cmdType, payload)
	if errors.Is(err, ErrUnavailable) && d.Secondary != nil {
		return d.Secondary.Dispatch(ctx, cmdType, payload)
	}
	return resp, err
}
