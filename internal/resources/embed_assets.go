package resources

import _ "embed"

//go:embed ui/dark/connected.svg
var uiDarkConnected []byte

//go:embed ui/dark/disconnected.svg
var uiDarkDisconnected []byte

//go:embed ui/dark/icon.svg
var uiDarkIcon []byte

//go:embed ui/light/connected.svg
var uiLightConnected []byte

//go:embed ui/light/disconnected.svg
var uiLightDisconnected []byte

//go:embed ui/light/icon.svg
var uiLightIcon []byte
