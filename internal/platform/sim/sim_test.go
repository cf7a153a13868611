package sim

import (
	"context"
	"testing"

	"github.com/example/tempvoice/internal/platform"
)

var _ platform.Gateway = (*Platform)(nil)

func TestResolveMember(t *testing.T) {
	p := New(platform.Member{ID: "bot"})
	p.AddCommunity("c1")
	p.AddMember("c1", platform.Member{ID: "u1", Name: "Alice"})
	p.AddMember("c1", platform.Member{ID: "u2", Name: "alice"})

	ctx := context.Background()

	t.Run("mention", func(t *testing.T) {
		members, err := p.ResolveMember(ctx, "c1", "<@u1>")
		if err != nil || len(members) != 1 || members[0].ID != "u1" {
			t.Fatalf("members = %v, err = %v", members, err)
		}
	})

	t.Run("name is case-insensitive", func(t *testing.T) {
		members, err := p.ResolveMember(ctx, "c1", "ALICE")
		if err != nil || len(members) != 2 {
			t.Fatalf("members = %v, err = %v", members, err)
		}
	})

	t.Run("miss", func(t *testing.T) {
		members, err := p.ResolveMember(ctx, "c1", "nobody")
		if err != nil || len(members) != 0 {
			t.Fatalf("members = %v, err = %v", members, err)
		}
	})
}

func TestVoiceState(t *testing.T) {
	p := New(platform.Member{ID: "bot"})
	p.AddCommunity("c1")
	p.AddMember("c1", platform.Member{ID: "u1", Name: "alice"})
	p.SeedVoiceChannel("c1", "v1", "One", "")
	p.SeedVoiceChannel("c1", "v2", "Two", "")

	ctx := context.Background()

	p.Connect("u1", "v1")
	if ch, _ := p.VoiceChannelOf(ctx, "c1", "u1"); ch != "v1" {
		t.Fatalf("channel = %q, want v1", ch)
	}

	// Connecting elsewhere implies leaving the previous channel.
	p.Connect("u1", "v2")
	if ch, _ := p.VoiceChannelOf(ctx, "c1", "u1"); ch != "v2" {
		t.Fatalf("channel = %q, want v2", ch)
	}
	users, _ := p.ConnectedUsers(ctx, "v1")
	if len(users) != 0 {
		t.Fatalf("v1 occupants = %v, want none", users)
	}

	p.Disconnect("u1")
	if ch, _ := p.VoiceChannelOf(ctx, "c1", "u1"); ch != "" {
		t.Fatalf("channel = %q, want disconnected", ch)
	}
}

func TestDeleteChannel(t *testing.T) {
	p := New(platform.Member{ID: "bot"})
	p.AddCommunity("c1")
	p.SeedVoiceChannel("c1", "v1", "One", "")

	ctx := context.Background()
	if err := p.DeleteChannel(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ChannelInfo(ctx, "v1"); err != platform.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := p.ConnectedUsers(ctx, "v1"); err != platform.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
