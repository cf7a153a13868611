package engine

import (
	"context"
	"testing"

	"github.com/example/tempvoice/internal/parsing"
)

func TestLastByKind(t *testing.T) {
	cmd := parsing.Parse("c -l 5 -n first -l 10 -n second room")

	byKind := lastByKind(cmd.Options)
	if got := byKind[optionLimit].Params[0]; got != "10" {
		t.Errorf("limit param = %q, want last occurrence 10", got)
	}
	if got := byKind[optionName].Params; len(got) != 2 || got[0] != "second" || got[1] != "room" {
		t.Errorf("name params = %v, want [second room]", got)
	}
}

func TestParseBoundedInt(t *testing.T) {
	cases := []struct {
		name    string
		option  parsing.Option
		want    int
		wantErr bool
	}{
		{"in range", parsing.Option{Name: "l", Params: []string{"5"}}, 5, false},
		{"lower bound", parsing.Option{Name: "l", Params: []string{"1"}}, 1, false},
		{"upper bound", parsing.Option{Name: "l", Params: []string{"99"}}, 99, false},
		{"zero", parsing.Option{Name: "l", Params: []string{"0"}}, 0, true},
		{"above range", parsing.Option{Name: "l", Params: []string{"100"}}, 0, true},
		{"not a number", parsing.Option{Name: "l", Params: []string{"five"}}, 0, true},
		{"no parameter", parsing.Option{Name: "l"}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseBoundedInt(tc.option, 1, maxUserLimit)
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBuildCreateRequest_PrivateAllExcludesRequester(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")
	p.Connect(bob.ID, "lobby")
	p.Connect(carol.ID, "lobby")

	cmd := parsing.Parse("c -p all")
	req, vErr := e.buildCreateRequest(ctx, command(alice, "c -p all"), cmd, "lobby")
	if vErr.HasErrors() {
		t.Fatalf("unexpected validation errors: %v", vErr.Messages)
	}
	if len(req.allowed) != 2 {
		t.Fatalf("allowed = %v, want bob and carol only", req.allowed)
	}
	for _, member := range req.allowed {
		if member.ID == alice.ID {
			t.Error("the requester must not appear in the allow list")
		}
	}
}

func TestBuildCreateRequest_PrivateAllRejectsExtraParams(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")

	cmd := parsing.Parse("c -p all <@100300>")
	_, vErr := e.buildCreateRequest(ctx, command(alice, "c -p all <@100300>"), cmd, "lobby")
	if !vErr.HasErrors() {
		t.Fatal("expected a validation error for `all` with extra parameters")
	}
}

func TestBuildCreateRequest_UnresolvedRefsCollected(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")

	cmd := parsing.Parse("c -p ghost phantom")
	_, vErr := e.buildCreateRequest(ctx, command(alice, "c -p ghost phantom"), cmd, "lobby")
	if len(vErr.Messages) != 1 {
		t.Fatalf("messages = %v, want one combined not-found message", vErr.Messages)
	}
	if got := vErr.Messages[0]; got != "The following usernames were not found: ghost, phantom" {
		t.Errorf("message = %q", got)
	}
}
