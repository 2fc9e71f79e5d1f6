package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "/topic/game/s-1", GameTopic("s-1"))
	assert.Equal(t, "/topic/game/s-1/chat", ChatTopic("s-1"))
	assert.Equal(t, "/topic/game/s-1/progress", ProgressTopic("s-1"))
	assert.Equal(t, "/topic/game/s-1/phase", PhaseTopic("s-1"))
	assert.Equal(t, "/user/queue/game/s-1/p-1", PersonalTopic("s-1", "p-1"))
	assert.Equal(t, "/app/game/s-1/chat", CommandTopic("s-1", "chat"))
}

func TestSubjectForm(t *testing.T) {
	assert.Equal(t, "topic.game.s-1", subjectForm("/topic/game/s-1"))
	assert.Equal(t, "user.queue.game.s-1.p-1", subjectForm("/user/queue/game/s-1/p-1"))
	assert.Equal(t, "app.game.s-1.start", subjectForm("/app/game/s-1/start"))
}
