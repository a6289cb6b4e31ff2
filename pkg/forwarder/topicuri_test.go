package forwarder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicNameFromURIBareName(t *testing.T) {
	require.Equal(t, "commands", topicNameFromURI("commands"))
}

func TestTopicNameFromURIHostAndTopic(t *testing.T) {
	require.Equal(t, "commands", topicNameFromURI("//broker1:9092/commands"))
}

func TestTopicNameFromURIHostNoPort(t *testing.T) {
	require.Equal(t, "status", topicNameFromURI("//broker1/status"))
}

func TestTopicNameFromURIHostOnly(t *testing.T) {
	require.Equal(t, "", topicNameFromURI("//broker1"))
}
