package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"accessbus/src/types"
)

func (c *Client) Login(ctx context.Context, email, password string) (*types.AuthResponse, error) {
	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/login",
		Body:   types.LoginRequestBody{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	var res types.AuthResponse
	if err := resp.Decode("", &res); err != nil {
		return nil, err
	}
	c.session.Set(Tokens{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		UserID:       res.UserID,
		Role:         res.Role,
	})
	c.saveSession()
	return &res, nil
}

func (c *Client) Register(ctx context.Context, body types.RegisterUserRequestBody) (*types.AuthResponse, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/register", Body: body})
	if err != nil {
		return nil, err
	}
	var res types.AuthResponse
	if err := resp.Decode("", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh forces a new access token.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refresh(ctx, "")
}

// Logout tells the server to revoke the refresh tokens and always clears the
// local session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/logout"})
	c.clearSession()
	return err
}

func (c *Client) Autocomplete(ctx context.Context, input string, limit int) ([]types.Stop, error) {
	q := url.Values{"input": {input}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/autocomplete", Query: q})
	if err != nil {
		return nil, err
	}
	var stops []types.Stop
	if err := resp.Decode("data", &stops); err != nil {
		return nil, err
	}
	return stops, nil
}

func (c *Client) Timetables(ctx context.Context, originID, destinationID string) ([]types.Timetable, error) {
	q := url.Values{"origin_id": {originID}}
	if destinationID != "" {
		q.Set("destination_id", destinationID)
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/timetables", Query: q})
	if err != nil {
		return nil, err
	}
	var out []types.Timetable
	if err := resp.Decode("data", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateReservation(ctx context.Context, body types.CreateReservationRequestBody) (*types.ReservationView, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/create_reservation", Body: body})
	if err != nil {
		return nil, err
	}
	var view types.ReservationView
	if err := resp.Decode("data", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// DeleteReservation reports whether the server had a reservation to delete.
func (c *Client) DeleteReservation(ctx context.Context) (bool, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/delete_reservation"})
	if err != nil {
		return false, err
	}
	return resp.Get("deleted").Bool(), nil
}

func (c *Client) SeeReservation(ctx context.Context) (*types.ReservationView, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/see_reservation"})
	if err != nil {
		return nil, err
	}
	var view types.ReservationView
	if err := resp.Decode("data", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ShowReservations(ctx context.Context, lat, lon float64, limit int) ([]types.ReservationView, error) {
	q := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/show_reservations", Query: q})
	if err != nil {
		return nil, err
	}
	var out []types.ReservationView
	if err := resp.Decode("data", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddVolunteer returns the new volunteer count of the reservation.
func (c *Client) AddVolunteer(ctx context.Context, reservationID uint) (uint, error) {
	return c.volunteer(ctx, "/add_volunteer", reservationID)
}

func (c *Client) RemoveVolunteer(ctx context.Context, reservationID uint) (uint, error) {
	return c.volunteer(ctx, "/remove_volunteer", reservationID)
}

func (c *Client) volunteer(ctx context.Context, path string, reservationID uint) (uint, error) {
	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   types.VolunteerRequestBody{ReservationID: reservationID},
	})
	if err != nil {
		return 0, err
	}
	return uint(resp.Get("data.volunteer_count").Uint()), nil
}

func (c *Client) UserInfo(ctx context.Context) (*types.UserInfo, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/user-info"})
	if err != nil {
		return nil, err
	}
	var info types.UserInfo
	if err := resp.Decode("data", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) EditProfile(ctx context.Context, body types.EditProfileRequestBody) (*types.UserInfo, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/edit_profile", Body: body})
	if err != nil {
		return nil, err
	}
	var info types.UserInfo
	if err := resp.Decode("data", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	_, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/change_password",
		Body:   types.ChangePasswordRequestBody{OldPassword: oldPassword, NewPassword: newPassword},
	})
	return err
}

// UploadPDF stores a document linked to the signed in user and returns its id.
func (c *Client) UploadPDF(ctx context.Context, filename string, content []byte) (string, error) {
	return c.upload(ctx, "/upload_pdf", filename, content)
}

// UploadPDFTemp stores a document before the account exists.
func (c *Client) UploadPDFTemp(ctx context.Context, filename string, content []byte) (string, error) {
	return c.upload(ctx, "/upload_pdf_temp", filename, content)
}

func (c *Client) upload(ctx context.Context, path, filename string, content []byte) (string, error) {
	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Upload: &Upload{Filename: filename, Content: content},
	})
	if err != nil {
		return "", err
	}
	return resp.Get("document_id").String(), nil
}

func (c *Client) ViewPDF(ctx context.Context) ([]byte, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/view_pdf"})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) LinkDocumentToUser(ctx context.Context, documentID string) error {
	_, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/link_document_to_user",
		Body:   types.LinkDocumentRequestBody{DocumentID: documentID},
	})
	return err
}
