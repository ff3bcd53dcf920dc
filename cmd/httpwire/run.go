package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"httpwire/application/http/actor/client"
	"httpwire/application/http/multipart"
	"httpwire/internal/config"
	"httpwire/internal/metrics"
	"httpwire/transport"

	"github.com/pkg/errors"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

var ErrDataWithForm = errors.New("--data cannot be combined with --form or --file")

type runner struct {
	cli     *config.CLI
	cfg     *config.Config
	client  *client.Client
	metrics *metrics.Metrics
	logger  *zap.Logger

	out io.Writer
}

func newRunner(
	cli *config.CLI,
	cfg *config.Config,
	c *client.Client,
	m *metrics.Metrics,
	log *zap.Logger,
) *runner {
	return &runner{cli: cli, cfg: cfg, client: c, metrics: m, logger: log, out: os.Stdout}
}

// run sends the request and prints the response.
// It returns 1 when no response was received and 0 otherwise.
func (r *runner) run(ctx context.Context) int {
	defer r.logger.Sync()

	if path := r.cfg.FilePath(); path != "" {
		r.logger.Debug("config loaded", zap.String("path", path))
	}

	req, err := buildRequest(r.cli, r.cfg)
	if err != nil {
		r.logger.Error("invalid request", zap.Error(err))
		return 1
	}

	res, err := r.client.Send(ctx, *req)
	if err != nil {
		r.logger.Error("request failed", zap.Error(err))
	}

	if res.StatusCode != 0 {
		printResponse(r.out, res)
	}

	if r.cfg.Metrics.Enabled {
		if err := r.printMetrics(); err != nil {
			r.logger.Warn("printing metrics", zap.Error(err))
		}
	}

	if res.StatusCode == 0 {
		return 1
	}
	return 0
}

func buildRequest(cli *config.CLI, cfg *config.Config) (*client.Request, error) {
	req, err := client.NewRequest(cli.Method, cli.URL)
	if err != nil {
		return nil, err
	}

	if cfg.Client.UserAgent != "" {
		req.WithUserAgent(cfg.Client.UserAgent)
	}
	if cfg.Client.Accept != "" {
		req.WithAccept(cfg.Client.Accept)
	}

	for _, h := range cli.Header {
		name, value, found := strings.Cut(h, ":")
		if !found || strings.TrimSpace(name) == "" {
			return nil, errors.Errorf("header %q is not name:value", h)
		}
		req.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	switch {
	case len(cli.Form) > 0 || len(cli.File) > 0:
		if cli.Data != "" {
			return nil, ErrDataWithForm
		}
		body, bodyType, err := buildForm(cli.Form, cli.File)
		if err != nil {
			return nil, err
		}
		req.WithBody(body, bodyType)

	case cli.Data != "":
		req.WithBody([]byte(cli.Data), cli.DataType)
	}

	if cli.RangeStart != 0 || cli.RangeEnd != 0 {
		req.WithRange(cli.RangeStart, cli.RangeEnd)
	}

	req.WithRedirects(!cfg.Client.NoRedirect)

	if cfg.Proxy.Host != "" {
		req.WithProxy(transport.ProxyConfig{
			Host:     cfg.Proxy.Host,
			Port:     uint16(cfg.Proxy.Port),
			User:     cfg.Proxy.User,
			Password: cfg.Proxy.Password,
		})
	}

	if cfg.Auth.User != "" {
		req.WithCredentials(cfg.Auth.User, cfg.Auth.Password)
	}

	return req, nil
}

// buildForm compiles fields given as name=value and files given as name=@path.
func buildForm(fields, files []string) ([]byte, string, error) {
	form, err := multipart.NewForm()
	if err != nil {
		return nil, "", err
	}

	for _, f := range fields {
		name, value, found := strings.Cut(f, "=")
		if !found || name == "" {
			return nil, "", errors.Errorf("form field %q is not name=value", f)
		}
		form.SetField(name, value)
	}

	for _, f := range files {
		name, path, found := strings.Cut(f, "=@")
		if !found || name == "" {
			return nil, "", errors.Errorf("file field %q is not name=@path", f)
		}
		if err := form.SetFileField(name, path, "", ""); err != nil {
			return nil, "", err
		}
	}

	body, err := form.Compile()
	if err != nil {
		return nil, "", err
	}
	return body, form.ContentType(false), nil
}

func printResponse(w io.Writer, res *client.Response) {
	fmt.Fprintf(w, "%s %d %s\n", res.Version, res.StatusCode, res.Reason)
	for _, f := range res.Headers.Fields() {
		fmt.Fprintf(w, "%s\n", f.Text())
	}
	for _, c := range res.Cookies {
		fmt.Fprintf(w, "Set-Cookie: %s\n", c)
	}
	fmt.Fprintln(w)
	w.Write(res.Body)
}

func (r *runner) printMetrics() error {
	families, err := r.metrics.Registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}

	fmt.Fprintln(r.out)
	enc := expfmt.NewEncoder(r.out, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return errors.Wrap(err, "encoding metrics")
		}
	}
	return nil
}
