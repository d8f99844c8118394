package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgspace-backend/pkg/models"
)

func TestSections_CreateNotifiesGroup(t *testing.T) {
	e := newEnv(t)
	docs := e.section("Docs", nil, e.ann)

	code, env := e.do(http.MethodPost, "/api/sections",
		map[string]any{"title": "  Reports ", "parentId": docs.ID}, e.as(e.bob, e.space, models.RoleMember))
	require.Equal(t, http.StatusCreated, code)

	sec := decode[models.Section](t, env)
	assert.Equal(t, "Reports", sec.Title)
	require.NotNil(t, sec.ParentID)
	assert.Equal(t, docs.ID, *sec.ParentID)
	require.NotNil(t, sec.CreatedByID)
	assert.Equal(t, e.bob.ID, *sec.CreatedByID)

	require.Len(t, e.notifier.sent, 1)
	assert.Equal(t, "📁 <b>Bob</b> created section:\nDocs → Reports", e.notifier.sent[0].text)
	assert.Equal(t, sec.ID, *e.notifier.sent[0].sectionID)
}

func TestSections_CreateRejections(t *testing.T) {
	e := newEnv(t)
	foreign, err := e.tree.Create(context.Background(), e.other.ID, nil, "Elsewhere", nil)
	require.NoError(t, err)

	code, env := e.do(http.MethodPost, "/api/sections", map[string]any{"title": "x"},
		e.as(e.ann, e.space, models.RoleRestricted))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You cannot perform this action", env.Error.Message)

	code, env = e.do(http.MethodPost, "/api/sections", map[string]any{"title": "x", "parentId": foreign.ID},
		e.as(e.ann, e.space, models.RoleMember))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Parent section not found", env.Error.Message)

	code, env = e.do(http.MethodPost, "/api/sections", map[string]any{"title": "   "},
		e.as(e.ann, e.space, models.RoleMember))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Empty(t, e.notifier.sent)
}

func TestSections_GetDetails(t *testing.T) {
	e := newEnv(t)
	docs := e.section("Docs", nil, e.ann)
	reports := e.section("Reports", &docs.ID, e.ann)
	e.section("Q1", &reports.ID, e.ann)
	e.item(reports.ID, itemsText("hello"), e.ann)

	code, env := e.do(http.MethodGet, fmt.Sprintf("/api/sections/%d", reports.ID), nil,
		e.as(e.bob, e.space, models.RoleRestricted))
	require.Equal(t, http.StatusOK, code)

	d := decode[models.SectionDetails](t, env)
	assert.Equal(t, "Reports", d.Title)
	require.Len(t, d.Children, 1)
	assert.Equal(t, "Q1", d.Children[0].Title)
	require.Len(t, d.Items, 1)
	assert.Equal(t, []models.Breadcrumb{{ID: docs.ID, Title: "Docs"}, {ID: reports.ID, Title: "Reports"}}, d.Path)
	require.NotNil(t, d.CreatedBy)
	assert.Equal(t, "Ann", d.CreatedBy.FirstName)

	code, env = e.do(http.MethodGet, "/api/sections", nil, e.as(e.bob, e.space, models.RoleMember))
	require.Equal(t, http.StatusOK, code)
	roots := decode[[]models.Section](t, env)
	require.Len(t, roots, 1)
	require.NotNil(t, roots[0].Count)
	assert.Equal(t, 1, roots[0].Count.Children)

	code, _ = e.do(http.MethodGet, fmt.Sprintf("/api/sections/%d", reports.ID), nil,
		e.as(e.bob, e.other, models.RoleAdministrator))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(http.MethodGet, "/api/sections/abc", nil, e.as(e.bob, e.space, models.RoleMember))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSections_UpdateOwnership(t *testing.T) {
	e := newEnv(t)
	docs := e.section("Docs", nil, e.ann)
	path := fmt.Sprintf("/api/sections/%d", docs.ID)

	code, _ := e.do(http.MethodPatch, path, map[string]any{"title": "Mine"}, e.as(e.bob, e.space, models.RoleMember))
	assert.Equal(t, http.StatusForbidden, code)

	code, env := e.do(http.MethodPatch, path, map[string]any{"title": "Papers"}, e.as(e.ann, e.space, models.RoleMember))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Papers", decode[models.Section](t, env).Title)

	code, _ = e.do(http.MethodPatch, path, map[string]any{"order": 4}, e.as(e.bob, e.space, models.RoleAdministrator))
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(http.MethodPatch, path, map[string]any{"title": ""}, e.as(e.ann, e.space, models.RoleMember))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSections_Delete(t *testing.T) {
	e := newEnv(t)
	docs := e.section("Docs", nil, e.ann)
	child := e.section("Child", &docs.ID, e.ann)
	path := fmt.Sprintf("/api/sections/%d", docs.ID)

	code, _ := e.do(http.MethodDelete, path, nil, e.as(e.bob, e.space, models.RoleMember))
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(http.MethodDelete, path, nil, e.as(e.ann, e.space, models.RoleMember))
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(http.MethodGet, fmt.Sprintf("/api/sections/%d", child.ID), nil, e.as(e.ann, e.space, models.RoleMember))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSections_Move(t *testing.T) {
	e := newEnv(t)
	a := e.section("A", nil, e.ann)
	b := e.section("B", &a.ID, e.ann)
	c := e.section("C", &b.ID, e.ann)
	admin := e.as(e.ann, e.space, models.RoleAdministrator)

	code, _ := e.do(http.MethodPost, fmt.Sprintf("/api/sections/%d/move", c.ID), map[string]any{"parentId": nil},
		e.as(e.ann, e.space, models.RoleMember))
	assert.Equal(t, http.StatusForbidden, code)

	code, env := e.do(http.MethodPost, fmt.Sprintf("/api/sections/%d/move", a.ID), map[string]any{"parentId": c.ID}, admin)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Cannot move section here", env.Error.Message)

	code, _ = e.do(http.MethodPost, fmt.Sprintf("/api/sections/%d/move", a.ID), map[string]any{"parentId": a.ID}, admin)
	assert.Equal(t, http.StatusConflict, code)

	foreign, err := e.tree.Create(context.Background(), e.other.ID, nil, "Elsewhere", nil)
	require.NoError(t, err)
	code, env = e.do(http.MethodPost, fmt.Sprintf("/api/sections/%d/move", c.ID), map[string]any{"parentId": foreign.ID}, admin)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Target parent section not found", env.Error.Message)

	code, env = e.do(http.MethodPost, fmt.Sprintf("/api/sections/%d/move", c.ID), map[string]any{"parentId": nil}, admin)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, decode[models.Section](t, env).ParentID)

	code, env = e.do(http.MethodGet, fmt.Sprintf("/api/sections/%d/children", a.ID), nil, admin)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Section](t, env), 1)
}
