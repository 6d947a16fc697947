// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package timesync implements the NTP-style clock exchange clients use to
// estimate their offset from server time. One stateless request/response:
// the client's send time is echoed back alongside the server's receive and
// send stamps, from which the client derives round-trip delay and offset.
// Any instance can answer; no instance-local state is involved.
package timesync

import "github.com/syncroom/syncroom/internal/models"

// Request is the client's side of the exchange. ClientSendTime is optional;
// clients that omit it still get server stamps for coarse correction.
type Request struct {
	ClientSendTime *int64 `json:"clientSendTime,omitempty"`
}

// Response carries the four timestamps of one exchange, all epoch
// milliseconds. ServerSendTime is never earlier than ServerReceiveTime.
type Response struct {
	ClientSendTime       *int64 `json:"clientSendTime,omitempty"`
	ServerReceiveTime    int64  `json:"serverReceiveTime"`
	ServerSendTime       int64  `json:"serverSendTime"`
	ServerProcessingTime int64  `json:"serverProcessingTime"`
}

// Begin stamps the arrival of a request. Call at entry, before any parsing
// or queueing, so the processing time covers the whole server residence.
func Begin() int64 {
	return models.NowMillis()
}

// Finish builds the response for a request received at receiveTime.
func Finish(req Request, receiveTime int64) Response {
	sendTime := models.NowMillis()
	if sendTime < receiveTime {
		sendTime = receiveTime
	}
	return Response{
		ClientSendTime:       req.ClientSendTime,
		ServerReceiveTime:    receiveTime,
		ServerSendTime:       sendTime,
		ServerProcessingTime: sendTime - receiveTime,
	}
}
