package e52go

import "strings"

// Setting names a module parameter addressed through "AT+<KEY>"
// commands. The catalog below covers the E52 command set.
type Setting string

const (
	SettingInfo         Setting = "INFO"
	SettingDevType      Setting = "DEVTYPE"
	SettingFWCode       Setting = "FWCODE"
	SettingPower        Setting = "POWER"
	SettingChannel      Setting = "CHANNEL"
	SettingUART         Setting = "UART"
	SettingRate         Setting = "RATE"
	SettingOption       Setting = "OPTION"
	SettingPANID        Setting = "PANID"
	SettingType         Setting = "TYPE"
	SettingSrcAddr      Setting = "SRC_ADDR"
	SettingDstAddr      Setting = "DST_ADDR"
	SettingSrcPort      Setting = "SRC_PORT"
	SettingDstPort      Setting = "DST_PORT"
	SettingMemberRad    Setting = "MEMBER_RAD"
	SettingNonMemberRad Setting = "NONMEMBER_RAD"
	SettingCSMARng      Setting = "CSMA_RNG"
	SettingRouterScore  Setting = "ROUTER_SCORE"
	SettingHead         Setting = "HEAD"
	SettingBack         Setting = "BACK"
	SettingSecurity     Setting = "SECURITY"
	SettingResetAux     Setting = "RESET_AUX"
	SettingResetTime    Setting = "RESET_TIME"
	SettingFilterTime   Setting = "FILTER_TIME"
	SettingAckTime      Setting = "ACK_TIME"
	SettingRouterTime   Setting = "ROUTER_TIME"
	SettingGroupAdd     Setting = "GROUP_ADD"
	SettingGroupDel     Setting = "GROUP_DEL"
	SettingGroupClear   Setting = "GROUP_CLR"
	SettingRouterClear  Setting = "ROUTER_CLR"
	SettingRouterSave   Setting = "ROUTER_SAVE"
	SettingRouterRead   Setting = "ROUTER_READ"
	SettingMAC          Setting = "MAC"
	SettingKey          Setting = "KEY"
	SettingReset        Setting = "RESET"
	SettingDefault      Setting = "DEFAULT"
	SettingIAP          Setting = "IAP"
)

// CastMode selects the module's communication method (AT+OPTION).
type CastMode int

const (
	CastUnicast   CastMode = 1
	CastMulticast CastMode = 2
	CastBroadcast CastMode = 3
	CastAnycast   CastMode = 4
)

// AirRate selects the over-the-air data rate (AT+RATE).
type AirRate int

const (
	Rate62_5K AirRate = 0
	Rate21_8K AirRate = 1
	Rate7K    AirRate = 2
)

// NodeType selects the mesh role (AT+TYPE).
type NodeType int

const (
	NodeRouting  NodeType = 0
	NodeTerminal NodeType = 1
)

// formatSet builds "AT+<KEY>=<p1>,<p2>,…" (or "AT+<KEY>" with no
// parameters, e.g. AT+RESET).
func formatSet(g Grammar, s Setting, remote bool, params ...string) string {
	prefix := g.CommandPrefix
	if remote {
		prefix = g.RemotePrefix
	}

	if len(params) == 0 {
		return prefix + string(s)
	}

	return prefix + string(s) + "=" + strings.Join(params, ",")
}

// formatQuery builds "AT+<KEY>=?".
func formatQuery(g Grammar, s Setting, remote bool) string {
	prefix := g.CommandPrefix
	if remote {
		prefix = g.RemotePrefix
	}

	return prefix + string(s) + "=?"
}

// saveFlag renders the persist-to-flash parameter shared by most
// setters.
func saveFlag(save bool) string {
	if save {
		return "1"
	}

	return "0"
}
