package channelcheck

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/keyproxy/internal/secrets"
)

const botID = "0190a8f2-7c3e-7b4a-9d1e-2f3a4b5c6d7e"

func TestVerifyUnsupportedChannel(t *testing.T) {
	c := New(secrets.New(t.TempDir()))
	if _, err := c.Verify(context.Background(), botID, "carrier-pigeon", ""); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("expected ErrUnsupportedChannel, got %v", err)
	}
}

func TestVerifyMissingSecret(t *testing.T) {
	c := New(secrets.New(t.TempDir()))
	if _, err := c.Verify(context.Background(), botID, "telegram", ""); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("expected ErrMissingSecret, got %v", err)
	}
}

func TestVerifyInvalidBotID(t *testing.T) {
	c := New(secrets.New(t.TempDir()))
	if _, err := c.Verify(context.Background(), "../x", "telegram", ""); !errors.Is(err, secrets.ErrInvalidBotID) {
		t.Errorf("expected ErrInvalidBotID, got %v", err)
	}
}

func TestVerifyCustomCheckFunc(t *testing.T) {
	sec := secrets.New(t.TempDir())
	sec.Write(botID, "MATRIX_TOKEN", "syt_abc\n")

	var seen string
	c := New(sec, WithCheck("matrix", func(_ context.Context, cred string) (string, error) {
		seen = cred
		return "@bot:example.org", nil
	}))

	res, err := c.Verify(context.Background(), botID, "matrix", "MATRIX_TOKEN")
	if err != nil {
		t.Fatal(err)
	}
	if seen != "syt_abc" {
		t.Errorf("check saw %q, want trimmed secret", seen)
	}
	if res.Account != "@bot:example.org" || res.Channel != "matrix" {
		t.Errorf("result = %+v", res)
	}
}

func TestVerifyCheckFailure(t *testing.T) {
	sec := secrets.New(t.TempDir())
	sec.Write(botID, DefaultSecretName("discord"), "bad")

	boom := errors.New("401 Unauthorized")
	c := New(sec, WithCheck("discord", func(context.Context, string) (string, error) { return "", boom }))
	if _, err := c.Verify(context.Background(), botID, "discord", ""); !errors.Is(err, boom) {
		t.Errorf("expected check error, got %v", err)
	}
}

func TestVerifySlack(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if tok := r.FormValue("token"); tok != "" {
			gotAuth = "Bearer " + tok
		}
		if !strings.HasSuffix(r.URL.Path, "/auth.test") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true,"url":"https://acme.slack.com/","team":"acme","user":"keybot","team_id":"T1","user_id":"U1"}`)
	}))
	defer api.Close()

	sec := secrets.New(t.TempDir())
	sec.Write(botID, "SLACK_BOT_TOKEN", "xoxb-123")

	c := New(sec, WithSlackAPI(api.URL+"/"))
	res, err := c.Verify(context.Background(), botID, "slack", "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Account != "keybot@acme" {
		t.Errorf("account = %q", res.Account)
	}
	if gotAuth != "Bearer xoxb-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestChannels(t *testing.T) {
	got := strings.Join(New(secrets.New(t.TempDir())).Channels(), ",")
	if got != "discord,slack,telegram" {
		t.Errorf("Channels = %s", got)
	}
}

func TestDefaultSecretName(t *testing.T) {
	if DefaultSecretName("telegram") != "TELEGRAM_BOT_TOKEN" {
		t.Error(DefaultSecretName("telegram"))
	}
}
