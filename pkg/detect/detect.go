// Package detect classifies the hosting runtime into one environment kind.
package detect

import (
	"regexp"

	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
)

// DefaultMobileUserAgent matches the user agents of mobile webviews.
var DefaultMobileUserAgent = regexp.MustCompile(`(?i)android|iphone|ipad|ipod|mobile|; wv\)`)

// Detector runs the detection cascade against a fresh probe on every call.
type Detector struct {
	probe    host.Probe
	mobileUA *regexp.Regexp
	logger   logging.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithMobileUserAgent replaces the mobile user-agent signature.
func WithMobileUserAgent(re *regexp.Regexp) Option {
	return func(d *Detector) {
		if re != nil {
			d.mobileUA = re
		}
	}
}

// WithLogger sets the logger used to report detection results.
func WithLogger(logger logging.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a detector reading the environment from probe. A nil probe
// always reports an empty environment.
func New(probe host.Probe, opts ...Option) *Detector {
	if probe == nil {
		probe = host.StaticProbe(host.Environment{})
	}
	d := &Detector{
		probe:    probe,
		mobileUA: DefaultMobileUserAgent,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect probes the environment and classifies it.
func (d *Detector) Detect() protocol.DetectionResult {
	_, result := d.Probe()
	return result
}

// Probe reads the environment once and returns it together with its
// classification, so a caller can bind a strategy to the exact surfaces
// that were classified.
func (d *Detector) Probe() (host.Environment, protocol.DetectionResult) {
	env := d.probe()
	result := Classify(env, d.mobileUA)
	d.logger.Debug("environment detected",
		logging.String("kind", result.Kind.String()),
		logging.String("confidence", string(result.Confidence)),
		logging.String("signal", result.Signal))
	return env, result
}

// Classify applies the priority cascade to env. The first matching rule wins;
// the order matters because a desktop shell may also expose objects the
// mobile rules would match.
func Classify(env host.Environment, mobileUA *regexp.Regexp) protocol.DetectionResult {
	if mobileUA == nil {
		mobileUA = DefaultMobileUserAgent
	}

	switch {
	case env.DesktopReceiver != nil:
		return result(protocol.NativeDesktop, protocol.ConfidenceHigh, protocol.SignalDesktopReceiver)
	case exposesKnownMethod(env.Mobile):
		return result(protocol.NativeMobile, protocol.ConfidenceHigh, protocol.SignalMobileObject)
	case env.AsyncCall != nil && mobileUA.MatchString(env.UserAgent):
		return result(protocol.NativeMobile, protocol.ConfidenceHigh, protocol.SignalAsyncMobileUA)
	case env.AsyncCall != nil && env.WebView == nil:
		return result(protocol.NativeMobile, protocol.ConfidenceMedium, protocol.SignalAsyncCall)
	case env.AsyncCall != nil:
		return result(protocol.NativeDesktop, protocol.ConfidenceHigh, protocol.SignalAsyncWebView)
	case env.WebView != nil:
		return result(protocol.NativeDesktop, protocol.ConfidenceMedium, protocol.SignalWebView)
	case env.Embedded != nil:
		return result(protocol.NativeEmbedded, protocol.ConfidenceHigh, protocol.SignalEmbeddedAPI)
	default:
		return result(protocol.BrowserOnly, protocol.ConfidenceLow, protocol.SignalFallback)
	}
}

func result(kind protocol.EnvironmentKind, confidence protocol.Confidence, signal string) protocol.DetectionResult {
	return protocol.DetectionResult{Kind: kind, Confidence: confidence, Signal: signal}
}

func exposesKnownMethod(obj host.NativeObject) bool {
	if obj == nil {
		return false
	}
	for _, m := range protocol.KnownMethods {
		if host.HasMethod(obj, m) {
			return true
		}
	}
	return false
}
