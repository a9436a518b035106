package messaging

// Topic constants for simulation output
const (
	TopicBlocks  = "poolsim.blocks"  // one message per block handled by a pool
	TopicResults = "poolsim.results" // final result of a run

	// ZeroMQ frames carry a short topic instead
	ZMQTopicBlock  = "block"
	ZMQTopicResult = "result"
)
