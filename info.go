package e52go

import (
	"context"
	"strings"
)

// Info is a structured snapshot of the module's key parameters.
// Values are kept in the module's own textual form ("0x0d,13" for a
// channel query) since formats vary between firmware revisions.
type Info struct {
	DevType  string
	FWCode   string
	Channel  string
	Power    string
	Rate     string
	Cast     string
	PANID    string
	NodeType string
	SrcAddr  string
	DstAddr  string
}

// infoQueries lists the per-field queries behind QueryInfo, in the
// order they are issued.
var infoQueries = []struct {
	setting Setting
	assign  func(*Info, string)
}{
	{SettingDevType, func(i *Info, v string) { i.DevType = v }},
	{SettingFWCode, func(i *Info, v string) { i.FWCode = v }},
	{SettingChannel, func(i *Info, v string) { i.Channel = v }},
	{SettingPower, func(i *Info, v string) { i.Power = v }},
	{SettingRate, func(i *Info, v string) { i.Rate = v }},
	{SettingOption, func(i *Info, v string) { i.Cast = v }},
	{SettingPANID, func(i *Info, v string) { i.PANID = v }},
	{SettingType, func(i *Info, v string) { i.NodeType = v }},
	{SettingSrcAddr, func(i *Info, v string) { i.SrcAddr = v }},
	{SettingDstAddr, func(i *Info, v string) { i.DstAddr = v }},
}

// QueryInfo collects the module's key parameters. It issues one query
// per field; each runs under the normal retry policy, and the first
// hard failure aborts the collection.
func (d *Driver) QueryInfo(ctx context.Context) (*Info, error) {
	info := &Info{}

	for _, q := range infoQueries {
		reply, err := d.Query(ctx, q.setting)
		if err != nil {
			return nil, err
		}

		q.assign(info, strings.Join(reply.Params, ","))
	}

	return info, nil
}
