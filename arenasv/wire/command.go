package wire

import "fmt"

// CmdID is the command code of a client to server message.
type CmdID uint8

const (
	CmdQuit CmdID = iota
	CmdRegister
	CmdLogin
	CmdLogout
	CmdFetchAllUsers
	CmdFetchAllFriends
	CmdLaunchBattle
	CmdQuitBattle
	CmdAcceptBattle
	CmdRejectBattle
	CmdInviteUser
	CmdSendMessage
	CmdMoveUp
	CmdMoveDown
	CmdMoveLeft
	CmdMoveRight
	CmdFire
	CmdFireUp
	CmdFireDown
	CmdFireLeft
	CmdFireRight
	CmdFatal
	CmdEnd
)

var cmdNames = [...]string{
	CmdQuit:            "CmdQuit",
	CmdRegister:        "CmdRegister",
	CmdLogin:           "CmdLogin",
	CmdLogout:          "CmdLogout",
	CmdFetchAllUsers:   "CmdFetchAllUsers",
	CmdFetchAllFriends: "CmdFetchAllFriends",
	CmdLaunchBattle:    "CmdLaunchBattle",
	CmdQuitBattle:      "CmdQuitBattle",
	CmdAcceptBattle:    "CmdAcceptBattle",
	CmdRejectBattle:    "CmdRejectBattle",
	CmdInviteUser:      "CmdInviteUser",
	CmdSendMessage:     "CmdSendMessage",
	CmdMoveUp:          "CmdMoveUp",
	CmdMoveDown:        "CmdMoveDown",
	CmdMoveLeft:        "CmdMoveLeft",
	CmdMoveRight:       "CmdMoveRight",
	CmdFire:            "CmdFire",
	CmdFireUp:          "CmdFireUp",
	CmdFireDown:        "CmdFireDown",
	CmdFireLeft:        "CmdFireLeft",
	CmdFireRight:       "CmdFireRight",
	CmdFatal:           "CmdFatal",
}

func (c CmdID) String() string {
	if c < CmdEnd {
		return cmdNames[c]
	}
	return fmt.Sprintf("CmdID(0x%02x)", uint8(c))
}

// Code is the response or message code of a server to client message.
// Codes below CodeMessageDelim answer a command, the rest are notices.
type Code uint8

const (
	CodeSayNothing Code = iota
	CodeRegisterSuccess
	CodeRegisterFail
	CodeYouHaveRegistered
	CodeLoginSuccess
	CodeYouHaveLogined
	CodeYouHaveNotLogin
	CodeLoginFailUnregistered
	CodeLoginFailErrorPassword
	CodeLoginFailDupUserID
	CodeLoginFailServerLimits
	CodeAllUsersInfo
	CodeAllFriendsInfo
	CodeLaunchBattleFail
	CodeLaunchBattleSuccess
	CodeYoureNotInBattle
	CodeYoureAlreadyInBattle
	CodeInvitationSent
	CodeNobodyInviteYou
	CodeMessageDelim
	CodeFriendLogin
	CodeFriendLogout
	CodeFriendAcceptBattle
	CodeFriendRejectBattle
	CodeFriendNotLogin
	CodeFriendAlreadyInBattle
	CodeInviteToBattle
	CodeFriendMessage
	CodeUserQuitBattle
	CodeBattleDisbanded
	CodeBattleInformation
	CodeYouAreDead
	CodeYouAreShot
	CodeYouAreTrappedInMagma
	CodeYouGotBloodVial
	CodeYouGotMagazine
	CodeYourMagazineIsEmpty
	CodeQuit
	CodeFatal
	codeEnd
)

var codeNames = [...]string{
	CodeSayNothing:             "CodeSayNothing",
	CodeRegisterSuccess:        "CodeRegisterSuccess",
	CodeRegisterFail:           "CodeRegisterFail",
	CodeYouHaveRegistered:      "CodeYouHaveRegistered",
	CodeLoginSuccess:           "CodeLoginSuccess",
	CodeYouHaveLogined:         "CodeYouHaveLogined",
	CodeYouHaveNotLogin:        "CodeYouHaveNotLogin",
	CodeLoginFailUnregistered:  "CodeLoginFailUnregistered",
	CodeLoginFailErrorPassword: "CodeLoginFailErrorPassword",
	CodeLoginFailDupUserID:     "CodeLoginFailDupUserID",
	CodeLoginFailServerLimits:  "CodeLoginFailServerLimits",
	CodeAllUsersInfo:           "CodeAllUsersInfo",
	CodeAllFriendsInfo:         "CodeAllFriendsInfo",
	CodeLaunchBattleFail:       "CodeLaunchBattleFail",
	CodeLaunchBattleSuccess:    "CodeLaunchBattleSuccess",
	CodeYoureNotInBattle:       "CodeYoureNotInBattle",
	CodeYoureAlreadyInBattle:   "CodeYoureAlreadyInBattle",
	CodeInvitationSent:         "CodeInvitationSent",
	CodeNobodyInviteYou:        "CodeNobodyInviteYou",
	CodeMessageDelim:           "CodeMessageDelim",
	CodeFriendLogin:            "CodeFriendLogin",
	CodeFriendLogout:           "CodeFriendLogout",
	CodeFriendAcceptBattle:     "CodeFriendAcceptBattle",
	CodeFriendRejectBattle:     "CodeFriendRejectBattle",
	CodeFriendNotLogin:         "CodeFriendNotLogin",
	CodeFriendAlreadyInBattle:  "CodeFriendAlreadyInBattle",
	CodeInviteToBattle:         "CodeInviteToBattle",
	CodeFriendMessage:          "CodeFriendMessage",
	CodeUserQuitBattle:         "CodeUserQuitBattle",
	CodeBattleDisbanded:        "CodeBattleDisbanded",
	CodeBattleInformation:      "CodeBattleInformation",
	CodeYouAreDead:             "CodeYouAreDead",
	CodeYouAreShot:             "CodeYouAreShot",
	CodeYouAreTrappedInMagma:   "CodeYouAreTrappedInMagma",
	CodeYouGotBloodVial:        "CodeYouGotBloodVial",
	CodeYouGotMagazine:         "CodeYouGotMagazine",
	CodeYourMagazineIsEmpty:    "CodeYourMagazineIsEmpty",
	CodeQuit:                   "CodeQuit",
	CodeFatal:                  "CodeFatal",
}

func (c Code) String() string {
	if c < codeEnd {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(0x%02x)", uint8(c))
}

// Payload selects the union arm carried by a server message.
type Payload int

const (
	PayloadNone Payload = iota
	PayloadFriend
	PayloadUsers
	PayloadFrame
	PayloadChat
)

func (c Code) Payload() Payload {
	switch c {
	case CodeAllUsersInfo, CodeAllFriendsInfo:
		return PayloadUsers
	case CodeBattleInformation:
		return PayloadFrame
	case CodeFriendMessage:
		return PayloadChat
	case CodeFriendLogin, CodeFriendLogout,
		CodeFriendAcceptBattle, CodeFriendRejectBattle,
		CodeFriendNotLogin, CodeFriendAlreadyInBattle,
		CodeInviteToBattle, CodeUserQuitBattle:
		return PayloadFriend
	}
	return PayloadNone
}
