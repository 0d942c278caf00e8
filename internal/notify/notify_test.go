package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOut(t *testing.T) {
	var a, b Recorder
	Multi{&a, Log{}, &b}.Notify("Image Shrunk", "10×10 → 5×5 (50% smaller)")

	want := []Note{{Title: "Image Shrunk", Body: "10×10 → 5×5 (50% smaller)"}}
	assert.Equal(t, want, a.Notes())
	assert.Equal(t, want, b.Notes())
}

func TestRecorderLast(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify("a", "1")
	r.Notify("b", "2")
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, Note{Title: "b", Body: "2"}, last)
	assert.Len(t, r.Notes(), 2)
}

func TestRecorderLimit(t *testing.T) {
	r := Recorder{Limit: 2}
	r.Notify("a", "1")
	r.Notify("b", "2")
	r.Notify("c", "3")
	assert.Equal(t, []Note{{Title: "b", Body: "2"}, {Title: "c", Body: "3"}}, r.Notes())
}

func TestDesktopNotifyDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	got := make(chan Note, 2)
	d := &Desktop{send: func(title, body string) error {
		<-release
		got <- Note{Title: title, Body: body}
		return nil
	}}

	done := make(chan struct{})
	go func() {
		d.Notify("Image Shrunk", "4000×3000 → 1000×750 (82% smaller)")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on delivery")
	}

	close(release)
	select {
	case n := <-got:
		assert.Equal(t, Note{Title: "Image Shrunk", Body: "4000×3000 → 1000×750 (82% smaller)"}, n)
	case <-time.After(time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestDesktopDeliveryErrorIsSwallowed(t *testing.T) {
	called := make(chan struct{})
	d := &Desktop{send: func(string, string) error {
		defer close(called)
		return errors.New("dbus unavailable")
	}}
	d.Notify("t", "b")
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("send not called")
	}
}

func TestFlushWaitsForDelivery(t *testing.T) {
	rec := &Recorder{}
	release := make(chan struct{})
	d := &Desktop{send: func(title, body string) error {
		<-release
		rec.Notify(title, body)
		return nil
	}}
	sinks := Multi{Log{}, d}

	sinks.Notify("Image Shrunk", "done")
	assert.False(t, sinks.Flush(20*time.Millisecond), "delivery still blocked")

	close(release)
	assert.True(t, sinks.Flush(time.Second))
	assert.Len(t, rec.Notes(), 1)
}
