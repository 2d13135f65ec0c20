package liveview

// Message is one outbound frame to a UI client
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Outbound message types
const (
	TypeSwapState      = "swap_state"
	TypeLiquidityState = "liquidity_state"
	TypeAssets         = "assets"
	TypeWallet         = "wallet"
	TypeHistory        = "history"
	TypeSubmitResult   = "submit_result"
	TypeNotification   = "notification"
	TypeError          = "error"
)

// NewMessage creates an outbound frame
func NewMessage(msgType string, data interface{}) Message {
	return Message{Type: msgType, Data: data}
}

// InputEvent is one inbound user action from a UI client
type InputEvent struct {
	Form   string `json:"form"`   // "swap" or "liquidity"
	Action string `json:"action"` // set_amount, set_asset, set_mode, connect_wallet, disconnect_wallet, submit, list_assets, list_history
	Side   string `json:"side,omitempty"`
	Value  string `json:"value,omitempty"`
	Asset  string `json:"asset,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// Inbound actions
const (
	ActionSetAmount        = "set_amount"
	ActionSetAsset         = "set_asset"
	ActionSetMode          = "set_mode"
	ActionConnectWallet    = "connect_wallet"
	ActionDisconnectWallet = "disconnect_wallet"
	ActionSubmit           = "submit"
	ActionListAssets       = "list_assets"
	ActionListHistory      = "list_history"
)
