package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
)

func adminFixture() (*fixture, AdminService, *models.User, *models.User) {
	f := newFixture(
		&models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin},
		&models.User{Username: "writer", Email: "writer@example.com"},
	)
	admin, _ := f.users.GetByID(context.Background(), 1)
	writer, _ := f.users.GetByID(context.Background(), 2)
	svc := NewAdminService(f.users, f.docs, f.announcements, f.feed, f.bus, f.logger)
	return f, svc, admin, writer
}

func TestAdminService_RequiresAdmin(t *testing.T) {
	_, svc, _, writer := adminFixture()
	ctx := context.Background()

	_, err := svc.ListUsers(ctx, nil, "", models.PaginationParams{})
	assert.True(t, IsErrorType(err, ErrTypeUnauthorized))

	_, err = svc.ListUsers(ctx, writer, "", models.PaginationParams{})
	assert.True(t, IsErrorType(err, ErrTypeForbidden))

	err = svc.SetSuspended(ctx, writer, 1, true)
	assert.True(t, IsErrorType(err, ErrTypeForbidden))

	_, err = svc.CreateAnnouncement(ctx, writer, &AnnouncementRequest{Title: "t", Body: "b"})
	assert.True(t, IsErrorType(err, ErrTypeForbidden))
}

func TestAdminService_Users(t *testing.T) {
	f, svc, admin, writer := adminFixture()
	ctx := context.Background()

	page, err := svc.ListUsers(ctx, admin, " writ ", models.PaginationParams{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "writer", page.Data[0].Username)
	assert.Equal(t, 25, page.Pagination.ItemsPerPage)

	require.NoError(t, svc.SetRole(ctx, admin, writer.ID, models.RoleAdmin))
	promoted, err := f.users.GetByID(ctx, writer.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())

	err = svc.SetRole(ctx, admin, writer.ID, "owner")
	assert.True(t, IsValidationError(err))
	err = svc.SetRole(ctx, admin, admin.ID, models.RoleUser)
	assert.True(t, IsValidationError(err))
	err = svc.SetRole(ctx, admin, 404, models.RoleUser)
	assert.True(t, IsNotFoundError(err))

	require.NoError(t, svc.SetSuspended(ctx, admin, writer.ID, true))
	suspended, err := f.users.GetByID(ctx, writer.ID)
	require.NoError(t, err)
	assert.True(t, suspended.IsSuspended)

	evts := f.bus.ofType(events.TypeUserSuspended)
	require.Len(t, evts, 1)
	assert.Equal(t, writer.ID, evts[0].(*events.UserSuspendedEvent).TargetUserID)

	err = svc.SetSuspended(ctx, admin, admin.ID, true)
	assert.True(t, IsValidationError(err))
}

func TestAdminService_ArchiveAnyDocument(t *testing.T) {
	f, svc, admin, writer := adminFixture()
	ctx := context.Background()
	doc := f.docs.put(&models.Document{AuthorID: writer.ID, Title: "Spam", IsPublished: true})

	list, err := svc.ListDocuments(ctx, admin, models.PaginationParams{})
	require.NoError(t, err)
	assert.Len(t, list.Data, 1)

	require.NoError(t, svc.SetDocumentArchived(ctx, admin, doc.ID, true))
	stored, ok := f.docs.get(doc.ID)
	require.True(t, ok)
	assert.True(t, stored.IsArchived)
	assert.False(t, stored.IsPubliclyVisible())

	changes := f.feed.on(platform.DocumentChannel(doc.ID))
	require.Len(t, changes, 1)
	assert.Equal(t, "UPDATE", changes[0].Event)
	assert.Equal(t, map[string]any{"is_archived": true}, changes[0].Data)

	evts := f.bus.ofType(events.TypeDocumentArchived)
	require.Len(t, evts, 1)
	assert.True(t, evts[0].(*events.DocumentArchivedEvent).ByAdmin)

	err = svc.SetDocumentArchived(ctx, admin, 404, true)
	assert.True(t, IsNotFoundError(err))
}

func TestAdminService_Announcements(t *testing.T) {
	f, svc, admin, _ := adminFixture()
	ctx := context.Background()

	a, err := svc.CreateAnnouncement(ctx, admin, &AnnouncementRequest{Title: " Maintenance ", Body: "Tonight", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "Maintenance", a.Title)
	require.NotNil(t, a.CreatedBy)
	assert.Equal(t, admin.ID, *a.CreatedBy)

	_, err = svc.CreateAnnouncement(ctx, admin, &AnnouncementRequest{Title: "", Body: "x"})
	assert.True(t, IsValidationError(err))

	_, err = svc.CreateAnnouncement(ctx, admin, &AnnouncementRequest{Title: "Old news", Body: "x"})
	require.NoError(t, err)

	active, err := svc.ListAnnouncements(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	updated, err := svc.UpdateAnnouncement(ctx, admin, a.ID, &AnnouncementRequest{Title: "Done", Body: "Finished", IsActive: false})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err = svc.ListAnnouncements(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.UpdateAnnouncement(ctx, admin, 404, &AnnouncementRequest{Title: "x", Body: "y"})
	assert.True(t, IsNotFoundError(err))

	require.NoError(t, svc.DeleteAnnouncement(ctx, admin, a.ID))
	all, err := svc.ListAnnouncements(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	var actions []string
	for _, e := range f.bus.ofType(events.TypeAnnouncementChanged) {
		actions = append(actions, e.(*events.AnnouncementChangedEvent).Action)
	}
	assert.Equal(t, []string{"create", "create", "update", "delete"}, actions)
}
