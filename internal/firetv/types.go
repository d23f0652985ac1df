// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package firetv

// PinDisplayRequest asks the Fire TV to show a pairing PIN on screen
type PinDisplayRequest struct {
	FriendlyName string `json:"friendlyName"`
}

// PinDisplayResponse is the reply to a PIN display request. Pin may be empty
// or the literal string "None" while the device is still preparing the PIN.
type PinDisplayResponse struct {
	Pin string `json:"pin"`
}

// PinVerifyRequest submits the PIN the user read off the screen
type PinVerifyRequest struct {
	Pin string `json:"pin"`
}

// PinVerifyResponse carries the client token in the description field
type PinVerifyResponse struct {
	Description string `json:"description"`
}

// KeyAction describes how a scan key event is delivered
type KeyAction struct {
	KeyActionType string `json:"keyActionType"`
}

// MediaPayload is the body of a media scan request
type MediaPayload struct {
	Direction string    `json:"direction"`
	KeyAction KeyAction `json:"keyAction"`
}
