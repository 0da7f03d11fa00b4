package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yasu-888/monologue-muser/internal/config"
	"github.com/yasu-888/monologue-muser/internal/domain/event"
	"github.com/yasu-888/monologue-muser/internal/eventid"
)

func TestEventID_FollowsKeyWithEventTime(t *testing.T) {
	obj := event.Object{Bucket: "b", Name: "20240101_ab12cd34_ideas.aiff", TimeCreated: "2024-01-01T00:00:00.000Z"}

	plain := &app{cfg: &config.Config{}}
	assert.Equal(t, eventid.Derive("b", obj.Name, ""), plain.eventID(obj))

	timed := &app{cfg: &config.Config{Ledger: config.Ledger{KeyWithEventTime: true}}}
	assert.Equal(t, eventid.Derive("b", obj.Name, obj.TimeCreated), timed.eventID(obj))
	assert.NotEqual(t, plain.eventID(obj), timed.eventID(obj))
}

func TestClose_WithoutFactory(t *testing.T) {
	_, a := newRootCmd()
	assert.NotPanics(t, a.close)
}
