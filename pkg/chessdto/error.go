package chessdto

// Stable error codes sent in `error` frames.
const (
	CodeMalformedMessage   = "MalformedMessage"
	CodeUnknownMessageType = "UnknownMessageType"
	CodeRoomFull           = "RoomFull"
	CodeNotInRoom          = "NotInRoom"
	CodeNotSeated          = "NotSeated"
	CodeWrongTurn          = "WrongTurn"
	CodeIllegalMove        = "IllegalMove"
	CodeGameOver           = "GameOver"
	CodeNotStarted         = "NotStarted"
	CodeNoMovesToUndo      = "NoMovesToUndo"
	CodeNoPendingOffer     = "NoPendingOffer"
	CodeClaimRejected      = "ClaimRejected"
	CodeInternal           = "Internal"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess room error"
}

// Frame converts the error to its wire form.
func (e DomainError) Frame() Error {
	return NewError(e.Code, e.Error())
}
