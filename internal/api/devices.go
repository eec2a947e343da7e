package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-fleet/internal/device"
	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
)

// Response messages that provisioning scripts on the devices match on.
const (
	msgAssigned      = "Raspberry assigned to user successfully!"
	msgRegistered    = "Device registered successfully!"
	msgIsRegistered  = "Device is registered"
	msgNotFound      = "Device not found"
	msgDevicesListed = "Devices retrieved successfully"
)

// registerResponse is the body of a successful POST /register-device.
type registerResponse struct {
	Message   string  `json:"message"`
	UserID    *string `json:"user_id"`
	Email     *string `json:"email"`
	Serial    string  `json:"serial"`
	IPAddress string  `json:"ip_address"`
}

// handleAssignUser binds a device to a user account.
func (s *Server) handleAssignUser(w http.ResponseWriter, r *http.Request) {
	var req fleet.AssignRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if _, err := s.reconciler.AssignUser(fleet.WithSource(r.Context(), fleet.SourceHTTP), req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": msgAssigned})
}

// handleRegisterDevice records a device's current address. Devices that
// cannot determine their own serial or address may send an empty body.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req fleet.RegisterRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	reg, err := s.reconciler.RegisterDevice(fleet.WithSource(r.Context(), fleet.SourceHTTP), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Message:   msgRegistered,
		UserID:    reg.UserID,
		Email:     reg.Email,
		Serial:    reg.Serial,
		IPAddress: reg.IPAddress,
	})
}

// handleCheckDevice looks up a single device by the serial query parameter.
func (s *Server) handleCheckDevice(w http.ResponseWriter, r *http.Request) {
	rec, err := s.queries.CheckDevice(r.Context(), r.URL.Query().Get("serial"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": msgNotFound})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     msgIsRegistered,
		"device_info": rec,
	})
}

// handleDeviceInfo reports the identity of the host running the service.
func (s *Server) handleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.DeviceInfo(r.Context()))
}

// handleListDevices returns every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.queries.ListDevices(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": msgDevicesListed,
		"count":   len(devices),
		"devices": devices,
	})
}

// decodeOptionalBody decodes a JSON body into v. An empty body leaves v
// at its zero value.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
