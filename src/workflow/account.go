package workflow

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"accessbus/src/types"
)

type AccountFlow struct {
	api  AccountAPI
	deps Deps
}

func NewAccountFlow(api AccountAPI, deps Deps) *AccountFlow {
	return &AccountFlow{api: api, deps: deps.withDefaults()}
}

func (f *AccountFlow) alert(op string, err error) error {
	f.deps.Logger.Printf("Error %s: %s\n", op, err.Error())
	f.deps.Alerter.Alert(AlertMessage(err))
	return err
}

func (f *AccountFlow) Profile(ctx context.Context) (*types.UserInfo, error) {
	info, err := f.api.UserInfo(ctx)
	if err != nil {
		return nil, f.alert("loading profile", err)
	}
	return info, nil
}

func (f *AccountFlow) EditProfile(ctx context.Context, body types.EditProfileRequestBody) (*types.UserInfo, error) {
	info, err := f.api.EditProfile(ctx, body)
	if err != nil {
		return nil, f.alert("editing profile", err)
	}
	f.deps.Alerter.Alert("Profile updated.")
	return info, nil
}

func (f *AccountFlow) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := f.api.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return f.alert("changing password", err)
	}
	f.deps.Alerter.Alert("Password changed.")
	return nil
}

// UploadDocument stores the file at path as the signed in user's document
// and returns its id.
func (f *AccountFlow) UploadDocument(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id, err := f.api.UploadPDF(ctx, filepath.Base(path), content)
	if err != nil {
		return "", f.alert("uploading document", err)
	}
	f.deps.Alerter.Alert("Document uploaded.")
	return id, nil
}

// ViewDocument copies the user's document to w.
func (f *AccountFlow) ViewDocument(ctx context.Context, w io.Writer) (int64, error) {
	b, err := f.api.ViewPDF(ctx)
	if err != nil {
		return 0, f.alert("loading document", err)
	}
	n, err := w.Write(b)
	return int64(n), err
}
