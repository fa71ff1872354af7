package models

// LinkState 有向好友关系状态
type LinkState string

const (
	// LinkNone 无关系
	LinkNone LinkState = ""
	// LinkFriend 已是好友
	LinkFriend LinkState = "friend"
	// LinkSent 我发出的请求
	LinkSent LinkState = "sent"
	// LinkPending 等待我接受的请求
	LinkPending LinkState = "pending"
)

// FriendLink 一条有向关系，(OwnerID, OtherID) 唯一
type FriendLink struct {
	OwnerID int64     `json:"owner_id"`
	OtherID int64     `json:"other_id"`
	State   LinkState `json:"state"`
}

// Friends 玩家好友数据
type Friends struct {
	FriendList         []int64 `json:"friendList"`
	SentRequests       []int64 `json:"sentRequests"`
	NeedAcceptRequests []int64 `json:"needAcceptRequests"`
}

// FriendsFromLinks 由有向关系构造好友数据
func FriendsFromLinks(links []FriendLink) Friends {
	f := Friends{
		FriendList:         []int64{},
		SentRequests:       []int64{},
		NeedAcceptRequests: []int64{},
	}
	for _, l := range links {
		switch l.State {
		case LinkFriend:
			f.FriendList = append(f.FriendList, l.OtherID)
		case LinkSent:
			f.SentRequests = append(f.SentRequests, l.OtherID)
		case LinkPending:
			f.NeedAcceptRequests = append(f.NeedAcceptRequests, l.OtherID)
		}
	}
	return f
}

// FriendSummary 公开资料中的好友
type FriendSummary struct {
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Gender   string `json:"gender,omitempty"`
	Points   int64  `json:"points"`
}
