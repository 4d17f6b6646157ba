package detect

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
)

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Edg/120.0"
	androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8; wv) AppleWebKit/537.36"
)

type postOnly struct{}

func (postOnly) PostMessage([]byte) error { return nil }

type embedded struct{}

func (embedded) Send(string, interface{}) error      { return nil }
func (embedded) On(string, func(interface{})) func() { return func() {} }

func noop(context.Context, string, interface{}) (interface{}, error) { return nil, nil }

var (
	receiver   = host.DesktopReceiverFunc(noop)
	asyncCall  = host.AsyncCallerFunc(noop)
	mobileObj  = host.MethodTable{"getRoster": nil}
	unknownObj = host.MethodTable{"vibrate": nil}
)

func TestClassifyCascade(t *testing.T) {
	tests := []struct {
		name       string
		env        host.Environment
		kind       protocol.EnvironmentKind
		confidence protocol.Confidence
		signal     string
	}{
		{"desktop receiver", host.Environment{DesktopReceiver: receiver}, protocol.NativeDesktop, protocol.ConfidenceHigh, protocol.SignalDesktopReceiver},
		{"desktop receiver beats mobile object", host.Environment{DesktopReceiver: receiver, Mobile: mobileObj, AsyncCall: asyncCall, UserAgent: androidUA}, protocol.NativeDesktop, protocol.ConfidenceHigh, protocol.SignalDesktopReceiver},
		{"mobile object", host.Environment{Mobile: mobileObj}, protocol.NativeMobile, protocol.ConfidenceHigh, protocol.SignalMobileObject},
		{"mobile object beats webview", host.Environment{Mobile: mobileObj, WebView: postOnly{}}, protocol.NativeMobile, protocol.ConfidenceHigh, protocol.SignalMobileObject},
		{"object without known methods ignored", host.Environment{Mobile: unknownObj}, protocol.BrowserOnly, protocol.ConfidenceLow, protocol.SignalFallback},
		{"async call with mobile ua", host.Environment{AsyncCall: asyncCall, WebView: postOnly{}, UserAgent: androidUA}, protocol.NativeMobile, protocol.ConfidenceHigh, protocol.SignalAsyncMobileUA},
		{"async call alone", host.Environment{AsyncCall: asyncCall, UserAgent: desktopUA}, protocol.NativeMobile, protocol.ConfidenceMedium, protocol.SignalAsyncCall},
		{"async call with webview", host.Environment{AsyncCall: asyncCall, WebView: postOnly{}, UserAgent: desktopUA}, protocol.NativeDesktop, protocol.ConfidenceHigh, protocol.SignalAsyncWebView},
		{"webview alone", host.Environment{WebView: postOnly{}}, protocol.NativeDesktop, protocol.ConfidenceMedium, protocol.SignalWebView},
		{"webview beats embedded", host.Environment{WebView: postOnly{}, Embedded: embedded{}}, protocol.NativeDesktop, protocol.ConfidenceMedium, protocol.SignalWebView},
		{"embedded api", host.Environment{Embedded: embedded{}}, protocol.NativeEmbedded, protocol.ConfidenceHigh, protocol.SignalEmbeddedAPI},
		{"nothing", host.Environment{UserAgent: androidUA}, protocol.BrowserOnly, protocol.ConfidenceLow, protocol.SignalFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.env, nil)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.confidence, got.Confidence)
			assert.Equal(t, tt.signal, got.Signal)
		})
	}
}

// Every combination of the surfaces yields exactly one valid kind.
func TestClassifyAllCombinations(t *testing.T) {
	for mask := 0; mask < 1<<6; mask++ {
		env := host.Environment{UserAgent: desktopUA}
		if mask&1 != 0 {
			env.DesktopReceiver = receiver
		}
		if mask&2 != 0 {
			env.Mobile = mobileObj
		}
		if mask&4 != 0 {
			env.AsyncCall = asyncCall
		}
		if mask&8 != 0 {
			env.WebView = postOnly{}
		}
		if mask&16 != 0 {
			env.Embedded = embedded{}
		}
		if mask&32 != 0 {
			env.UserAgent = androidUA
		}

		got := Classify(env, nil)
		require.True(t, got.Kind.Valid(), fmt.Sprintf("mask %b", mask))
		if env.DesktopReceiver != nil {
			assert.Equal(t, protocol.NativeDesktop, got.Kind, fmt.Sprintf("mask %b", mask))
		}
		if env.Empty() {
			assert.Equal(t, protocol.BrowserOnly, got.Kind)
		}
	}
}

func TestDetectProbesEveryCall(t *testing.T) {
	env := host.Environment{}
	d := New(func() host.Environment { return env })

	assert.Equal(t, protocol.BrowserOnly, d.Detect().Kind)

	// the host injects its object after startup
	env.Mobile = mobileObj
	assert.Equal(t, protocol.NativeMobile, d.Detect().Kind)
}

func TestCustomMobileSignature(t *testing.T) {
	env := host.Environment{AsyncCall: asyncCall, WebView: postOnly{}, UserAgent: "KioskShell/2.0"}
	assert.Equal(t, protocol.SignalAsyncWebView, New(host.StaticProbe(env)).Detect().Signal)

	d := New(host.StaticProbe(env), WithMobileUserAgent(regexp.MustCompile(`KioskShell`)))
	assert.Equal(t, protocol.SignalAsyncMobileUA, d.Detect().Signal)
}

func TestNilProbe(t *testing.T) {
	assert.Equal(t, protocol.SignalFallback, New(nil).Detect().Signal)
}
