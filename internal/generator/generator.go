// Package generator renders schema document skeletons for new protocols.
package generator

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/glimte/protoreg/contracts"
	"github.com/glimte/protoreg/schema"
	"github.com/glimte/protoreg/serialization"
)

//go:embed template.json
var defaultTemplate string

// DefaultTemplate returns the built-in schema template
func DefaultTemplate() string {
	return defaultTemplate
}

// Data is the template context. Ref renders the reference key so templates
// can declare "{{.Ref}}": "OTHER" without escaping.
type Data struct {
	Protocol  string
	Transport contracts.Transport
	Port      int
	Ref       string
}

// Generator renders schema documents from a text/template
type Generator struct {
	tmpl   *template.Template
	logger *slog.Logger
}

type generatorConfig struct {
	text   string
	logger *slog.Logger
}

// Option configures the generator
type Option func(*generatorConfig)

// WithTemplate replaces the built-in template
func WithTemplate(text string) Option {
	return func(c *generatorConfig) {
		c.text = text
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *generatorConfig) {
		c.logger = logger
	}
}

// New parses the template and returns a generator
func New(opts ...Option) (*Generator, error) {
	cfg := &generatorConfig{
		text:   defaultTemplate,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tmpl, err := template.New("schema").
		Funcs(template.FuncMap{
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).
		Option("missingkey=error").
		Parse(cfg.text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema template: %w", err)
	}
	return &Generator{tmpl: tmpl, logger: cfg.logger}, nil
}

// NewFromFile creates a generator from a template file
func NewFromFile(path string, opts ...Option) (*Generator, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema template: %w", err)
	}
	return New(append(opts, WithTemplate(string(text)))...)
}

// Render produces the schema document for a protocol. The output must parse
// as a schema document describing the same protocol, transport and port.
func (g *Generator) Render(protocol, transport string, port int) ([]byte, error) {
	data, err := newData(protocol, transport, port)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render schema template: %w", err)
	}
	if err := verify(buf.Bytes(), data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders the schema and writes it to dir as "<protocol>.json",
// keeping the protocol name as given. It returns the written path.
func (g *Generator) WriteFile(dir, protocol, transport string, port int) (string, error) {
	out, err := g.Render(protocol, transport, port)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, strings.TrimSpace(protocol)+".json")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("failed to write schema file: %w", err)
	}

	g.logger.Info("generated schema", "protocol", contracts.NormalizeName(protocol), "path", path)
	return path, nil
}

func newData(protocol, transport string, port int) (Data, error) {
	name := strings.TrimSpace(protocol)
	if name == "" {
		return Data{}, fmt.Errorf("protocol name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return Data{}, fmt.Errorf("protocol name %q cannot be used as a file name", name)
	}

	def, err := contracts.NewProtocolDefinition(name, contracts.Transport(transport), port)
	if err != nil {
		return Data{}, err
	}
	return Data{
		Protocol:  def.Name,
		Transport: def.Transport,
		Port:      def.DefaultPort,
		Ref:       "$ref",
	}, nil
}

func verify(out []byte, data Data) error {
	obj, err := serialization.JSONCodec{}.Decode(out)
	if err != nil {
		return fmt.Errorf("rendered schema is not valid JSON: %w", err)
	}
	raw, err := schema.ParseDocument(obj)
	if err != nil {
		return fmt.Errorf("rendered schema is invalid: %w", err)
	}

	if contracts.NormalizeName(raw.Protocol) != data.Protocol {
		return fmt.Errorf("rendered schema describes protocol %q, want %s", raw.Protocol, data.Protocol)
	}
	if raw.Transport != string(data.Transport) {
		return fmt.Errorf("rendered schema has transport %v, want %s", raw.Transport, data.Transport)
	}
	if port, ok := raw.Port.(int64); !ok || port != int64(data.Port) {
		return fmt.Errorf("rendered schema has port %v, want %d", raw.Port, data.Port)
	}
	return nil
}
