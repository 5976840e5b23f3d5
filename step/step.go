package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/glimte/mqstep/config"
	"github.com/glimte/mqstep/template"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"

	// Parameters added when a user started the build
	ParamBuildUserID   = "BUILD_USER_ID"
	ParamBuildUserName = "BUILD_USER_NAME"
)

// Step is the configuration of one publish step.
type Step struct {
	Profile    string // broker profile name
	Exchange   string
	RoutingKey string
	Data       string // message template
	ToJSON     bool
}

// Build carries what the host knows about the running build.
type Build struct {
	Variables template.Parameters // build parameters
	UserID    string              // user who started the build, if any
	UserName  string
	Env       map[string]string // environment used to expand Data
}

// Parameters returns the parameter map the template is resolved against.
func (b Build) Parameters() template.Parameters {
	params := b.Variables.Clone()
	if b.UserID != "" {
		params.Set(ParamBuildUserID, b.UserID)
		params.Set(ParamBuildUserName, b.UserName)
	}
	return params
}

// EnvFromList converts KEY=VALUE pairs, as returned by os.Environ, into a map.
func EnvFromList(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}
	return env
}

// Message is a rendered message ready to be published.
type Message struct {
	Exchange    string
	RoutingKey  string
	ContentType string
	Body        []byte
}

// Render expands the environment into the template and resolves it against
// params. Exchange and routing key are passed through untouched.
func (s Step) Render(params template.Parameters, env map[string]string) (Message, error) {
	data := template.Expand(s.Data, template.MapLookup(env))

	msg := Message{
		Exchange:   s.Exchange,
		RoutingKey: s.RoutingKey,
	}

	if s.ToJSON {
		body, err := template.ResolveJSON(params, data)
		if err != nil {
			return Message{}, err
		}
		msg.ContentType = ContentTypeJSON
		msg.Body = []byte(body)
		return msg, nil
	}

	msg.ContentType = ContentTypeText
	msg.Body = []byte(template.ResolveRaw(params, data))
	return msg, nil
}

// Publisher sends rendered messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Dialer connects a Publisher to the broker of a profile.
type Dialer func(ctx context.Context, profile config.Profile) (Publisher, error)

// ProfileSource resolves broker profiles by name. *config.Config implements it.
type ProfileSource interface {
	Profile(name string) (*config.Profile, error)
}

// Runner performs publish steps.
type Runner struct {
	profiles ProfileSource
	dial     Dialer
	console  io.Writer
	logger   *slog.Logger
	metrics  *Metrics
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithConsole sets where the build log lines are written
func WithConsole(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.console = w
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records step outcomes in m
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a runner resolving profiles from profiles and connecting
// through dial.
func NewRunner(profiles ProfileSource, dial Dialer, options ...RunnerOption) *Runner {
	r := &Runner{
		profiles: profiles,
		dial:     dial,
		console:  io.Discard,
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// Perform runs s for build b. Any returned error means the step failed and
// nothing, or nothing confirmed, reached the broker.
func (r *Runner) Perform(ctx context.Context, s Step, b Build) (err error) {
	defer func() {
		if err != nil {
			r.printf("Error while sending to Rabbit-MQ : %v\n", err)
			r.logger.Error("error while sending to RabbitMQ",
				"profile", s.Profile,
				"exchange", s.Exchange,
				"routingKey", s.RoutingKey,
				"error", err)
		}
	}()

	r.printf("Retrieving parameters\n")
	params := b.Parameters()
	r.logger.Debug("parameters retrieved", "parameters", params.Names())

	r.printf("Initialisation Rabbit-MQ\n")
	profile, err := r.profiles.Profile(s.Profile)
	if err != nil {
		r.metrics.failed(StageProfile)
		return err
	}

	r.printf("Building message\n")
	msg, err := s.Render(params, b.Env)
	if err != nil {
		r.metrics.failed(StageFormat)
		r.logFormatError(err)
		return err
	}

	if s.ToJSON {
		r.logger.Info("sending message as JSON", "message", string(msg.Body))
		r.printf("Sending message as JSON:\n%s\n", msg.Body)
	} else {
		r.logger.Info("sending raw message", "message", string(msg.Body))
		r.printf("Sending raw message:\n%s\n", msg.Body)
	}

	r.printf("Sending message\n")
	publisher, err := r.dial(ctx, *profile)
	if err != nil {
		r.metrics.failed(StageConnect)
		return &PublishError{Profile: s.Profile, Exchange: s.Exchange, RoutingKey: s.RoutingKey, Err: err}
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			r.logger.Warn("failed to close broker connection", "profile", s.Profile, "error", closeErr)
			return
		}
		r.printf("Connection closed\n")
	}()

	start := time.Now()
	if err := publisher.Publish(ctx, msg); err != nil {
		r.metrics.failed(StagePublish)
		return &PublishError{Profile: s.Profile, Exchange: s.Exchange, RoutingKey: s.RoutingKey, Err: err}
	}
	r.metrics.published(msg.ContentType, time.Since(start))

	r.logger.Info("message sent",
		"profile", s.Profile,
		"exchange", s.Exchange,
		"routingKey", s.RoutingKey)

	return nil
}

func (r *Runner) logFormatError(err error) {
	var formatErr *template.DataFormatError
	if !errors.As(err, &formatErr) {
		return
	}
	for _, line := range formatErr.Lines {
		r.printf("\t- Incorrect data format : %s\n", line.Text)
		r.logger.Error("incorrect data format",
			"line", line.Number,
			"text", line.Text,
			"reason", line.Reason)
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.console, format, args...)
}
