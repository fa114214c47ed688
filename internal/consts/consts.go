package consts

const (
	// EventsChannel is the Redis channel board events are published on.
	EventsChannel = "board-events"

	// BoardViewKeyPrefix prefixes the cached card/task view of a board.
	BoardViewKeyPrefix = "boardview:"

	// Client-to-server socket message names.
	JoinBoards  = "join-boards"
	LeaveBoards = "leave-boards"
)
