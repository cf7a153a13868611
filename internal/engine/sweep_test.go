package engine

import (
	"context"
	"testing"
)

func TestSweep_EvictsAfterTimeout(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")
	e.HandleCommand(ctx, command(alice, "c -t 5"))
	ch, _ := p.ChannelNamed(testCommunity, "alice #1")

	for i := 0; i < 4; i++ {
		e.Sweep(ctx)
	}
	if !p.Exists(ch.ID) {
		t.Fatal("room evicted before the timeout elapsed")
	}

	e.Sweep(ctx)
	if p.Exists(ch.ID) {
		t.Fatal("room should have been evicted on the fifth pass")
	}
	if trackedRoom(t, e, ch.ID) != nil {
		t.Error("evicted room should have left the index")
	}
}

func TestSweep_OccupiedRoomDoesNotAge(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")
	e.HandleCommand(ctx, command(alice, "c -t 2"))
	ch, _ := p.ChannelNamed(testCommunity, "alice #1")
	p.Connect(bob.ID, ch.ID)

	for i := 0; i < 10; i++ {
		e.Sweep(ctx)
	}
	if !p.Exists(ch.ID) {
		t.Fatal("occupied room must not be evicted")
	}
	if room := trackedRoom(t, e, ch.ID); room == nil || room.IdleMinutes != 0 {
		t.Fatalf("room = %+v, want idle 0", room)
	}
}

func TestSweep_OccupancyResetsIdle(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")
	e.HandleCommand(ctx, command(alice, "c -t 5"))
	ch, _ := p.ChannelNamed(testCommunity, "alice #1")

	for i := 0; i < 4; i++ {
		e.Sweep(ctx)
	}

	p.Connect(bob.ID, ch.ID)
	e.HandleVoiceJoin(ctx, testCommunity, ch.ID)
	p.Disconnect(bob.ID)
	e.HandleVoiceLeave(ctx, testCommunity, ch.ID)

	for i := 0; i < 4; i++ {
		e.Sweep(ctx)
	}
	if !p.Exists(ch.ID) {
		t.Fatal("idle counter should have restarted after occupancy")
	}

	e.Sweep(ctx)
	if p.Exists(ch.ID) {
		t.Fatal("room should have been evicted once idle reached the timeout again")
	}
}

func TestSweep_ZeroTimeoutNeverEvicts(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")
	e.HandleCommand(ctx, command(alice, "c"))
	ch, _ := p.ChannelNamed(testCommunity, "alice #1")

	room := trackedRoom(t, e, ch.ID)
	room.TimeoutMinutes = 0

	for i := 0; i < 20; i++ {
		e.Sweep(ctx)
	}
	if !p.Exists(ch.ID) {
		t.Fatal("a room without a timeout must never be evicted")
	}
}

func TestSweep_ExileRoomEvictedWhenEmpty(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	createOwnedRoom(t, e, p, alice, bob)
	e.HandleCommand(ctx, command(alice, "kick <@100300>"))
	exile, _ := p.ChannelNamed(testCommunity, "you got kicked")

	e.Sweep(ctx)
	if !p.Exists(exile.ID) {
		t.Fatal("occupied exile room must survive the sweep")
	}

	p.Disconnect(bob.ID)
	e.Sweep(ctx)
	if p.Exists(exile.ID) {
		t.Fatal("empty exile room should go on the next pass")
	}
}

func TestSweep_ExileRoomEvictedOnLeaveEvent(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	createOwnedRoom(t, e, p, alice, bob)
	e.HandleCommand(ctx, command(alice, "kick <@100300>"))
	exile, _ := p.ChannelNamed(testCommunity, "you got kicked")

	p.Disconnect(bob.ID)
	e.HandleVoiceLeave(ctx, testCommunity, exile.ID)

	if p.Exists(exile.ID) {
		t.Fatal("exile room should be reclaimed the moment it empties")
	}
}

func TestSweep_VanishedChannelDropped(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	p.Connect(alice.ID, "lobby")
	e.HandleCommand(ctx, command(alice, "c"))
	ch, _ := p.ChannelNamed(testCommunity, "alice #1")

	if err := p.DeleteChannel(ctx, ch.ID); err != nil {
		t.Fatal(err)
	}

	e.Sweep(ctx)
	if trackedRoom(t, e, ch.ID) != nil {
		t.Error("vanished channel should have been dropped from the index")
	}
}
