// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package geo maps IANA timezone identifiers to the {city, flag} pair shown
// next to a user's presence. The table is static; zones it does not know
// fall back to the city segment of the zone name and a generic flag chosen
// by continent prefix.
package geo

import "strings"

// Location is the display identity derived from a timezone hint.
type Location struct {
	City string
	Flag string
}

// DefaultLocation is used when no timezone hint is supplied at all.
var DefaultLocation = Location{City: "UTC", Flag: "🌐"}

// cityTable maps well-known IANA zones to a city and country flag.
var cityTable = map[string]Location{
	"Europe/London":        {City: "London", Flag: "🇬🇧"},
	"Europe/Paris":         {City: "Paris", Flag: "🇫🇷"},
	"Europe/Berlin":        {City: "Berlin", Flag: "🇩🇪"},
	"Europe/Madrid":        {City: "Madrid", Flag: "🇪🇸"},
	"Europe/Rome":          {City: "Rome", Flag: "🇮🇹"},
	"Europe/Amsterdam":     {City: "Amsterdam", Flag: "🇳🇱"},
	"Europe/Brussels":      {City: "Brussels", Flag: "🇧🇪"},
	"Europe/Vienna":        {City: "Vienna", Flag: "🇦🇹"},
	"Europe/Zurich":        {City: "Zurich", Flag: "🇨🇭"},
	"Europe/Stockholm":     {City: "Stockholm", Flag: "🇸🇪"},
	"Europe/Oslo":          {City: "Oslo", Flag: "🇳🇴"},
	"Europe/Copenhagen":    {City: "Copenhagen", Flag: "🇩🇰"},
	"Europe/Helsinki":      {City: "Helsinki", Flag: "🇫🇮"},
	"Europe/Dublin":        {City: "Dublin", Flag: "🇮🇪"},
	"Europe/Lisbon":        {City: "Lisbon", Flag: "🇵🇹"},
	"Europe/Warsaw":        {City: "Warsaw", Flag: "🇵🇱"},
	"Europe/Prague":        {City: "Prague", Flag: "🇨🇿"},
	"Europe/Budapest":      {City: "Budapest", Flag: "🇭🇺"},
	"Europe/Athens":        {City: "Athens", Flag: "🇬🇷"},
	"Europe/Bucharest":     {City: "Bucharest", Flag: "🇷🇴"},
	"Europe/Kyiv":          {City: "Kyiv", Flag: "🇺🇦"},
	"Europe/Istanbul":      {City: "Istanbul", Flag: "🇹🇷"},
	"Europe/Moscow":        {City: "Moscow", Flag: "🇷🇺"},
	"America/New_York":     {City: "New York", Flag: "🇺🇸"},
	"America/Chicago":      {City: "Chicago", Flag: "🇺🇸"},
	"America/Denver":       {City: "Denver", Flag: "🇺🇸"},
	"America/Phoenix":      {City: "Phoenix", Flag: "🇺🇸"},
	"America/Los_Angeles":  {City: "Los Angeles", Flag: "🇺🇸"},
	"America/Anchorage":    {City: "Anchorage", Flag: "🇺🇸"},
	"America/Toronto":      {City: "Toronto", Flag: "🇨🇦"},
	"America/Vancouver":    {City: "Vancouver", Flag: "🇨🇦"},
	"America/Montreal":     {City: "Montreal", Flag: "🇨🇦"},
	"America/Mexico_City":  {City: "Mexico City", Flag: "🇲🇽"},
	"America/Bogota":       {City: "Bogota", Flag: "🇨🇴"},
	"America/Lima":         {City: "Lima", Flag: "🇵🇪"},
	"America/Santiago":     {City: "Santiago", Flag: "🇨🇱"},
	"America/Buenos_Aires": {City: "Buenos Aires", Flag: "🇦🇷"},
	"America/Sao_Paulo":    {City: "Sao Paulo", Flag: "🇧🇷"},
	"America/Caracas":      {City: "Caracas", Flag: "🇻🇪"},
	"America/Havana":       {City: "Havana", Flag: "🇨🇺"},
	"Asia/Tokyo":           {City: "Tokyo", Flag: "🇯🇵"},
	"Asia/Seoul":           {City: "Seoul", Flag: "🇰🇷"},
	"Asia/Shanghai":        {City: "Shanghai", Flag: "🇨🇳"},
	"Asia/Hong_Kong":       {City: "Hong Kong", Flag: "🇭🇰"},
	"Asia/Taipei":          {City: "Taipei", Flag: "🇹🇼"},
	"Asia/Singapore":       {City: "Singapore", Flag: "🇸🇬"},
	"Asia/Bangkok":         {City: "Bangkok", Flag: "🇹🇭"},
	"Asia/Jakarta":         {City: "Jakarta", Flag: "🇮🇩"},
	"Asia/Manila":          {City: "Manila", Flag: "🇵🇭"},
	"Asia/Kolkata":         {City: "Kolkata", Flag: "🇮🇳"},
	"Asia/Karachi":         {City: "Karachi", Flag: "🇵🇰"},
	"Asia/Dubai":           {City: "Dubai", Flag: "🇦🇪"},
	"Asia/Riyadh":          {City: "Riyadh", Flag: "🇸🇦"},
	"Asia/Tehran":          {City: "Tehran", Flag: "🇮🇷"},
	"Asia/Jerusalem":       {City: "Jerusalem", Flag: "🇮🇱"},
	"Africa/Cairo":         {City: "Cairo", Flag: "🇪🇬"},
	"Africa/Lagos":         {City: "Lagos", Flag: "🇳🇬"},
	"Africa/Nairobi":       {City: "Nairobi", Flag: "🇰🇪"},
	"Africa/Johannesburg":  {City: "Johannesburg", Flag: "🇿🇦"},
	"Africa/Casablanca":    {City: "Casablanca", Flag: "🇲🇦"},
	"Australia/Sydney":     {City: "Sydney", Flag: "🇦🇺"},
	"Australia/Melbourne":  {City: "Melbourne", Flag: "🇦🇺"},
	"Australia/Brisbane":   {City: "Brisbane", Flag: "🇦🇺"},
	"Australia/Perth":      {City: "Perth", Flag: "🇦🇺"},
	"Pacific/Auckland":     {City: "Auckland", Flag: "🇳🇿"},
	"Pacific/Honolulu":     {City: "Honolulu", Flag: "🇺🇸"},
	"UTC":                  {City: "UTC", Flag: "🌐"},
}

// continentFlags maps the continent prefix of a zone to a generic region
// flag for zones the city table does not know.
var continentFlags = map[string]string{
	"Europe":     "🇪🇺",
	"America":    "🌎",
	"Asia":       "🌏",
	"Africa":     "🌍",
	"Australia":  "🌏",
	"Pacific":    "🌏",
	"Atlantic":   "🌍",
	"Indian":     "🌏",
	"Antarctica": "🇦🇶",
}

// Lookup resolves a timezone hint to its display location. Unknown zones
// yield the city stem of the last path segment (underscores become spaces)
// and the continent's generic flag; an empty hint yields DefaultLocation.
func Lookup(timezone string) Location {
	if timezone == "" {
		return DefaultLocation
	}
	if loc, ok := cityTable[timezone]; ok {
		return loc
	}

	city := timezone
	if idx := strings.LastIndex(timezone, "/"); idx >= 0 {
		city = timezone[idx+1:]
	}
	city = strings.ReplaceAll(city, "_", " ")

	flag := DefaultLocation.Flag
	if idx := strings.Index(timezone, "/"); idx > 0 {
		if f, ok := continentFlags[timezone[:idx]]; ok {
			flag = f
		}
	}

	return Location{City: city, Flag: flag}
}
