package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("Handler", func() {
	var (
		router http.Handler
		svc    *user.Service
	)

	withActor := func(p *internal.Principal) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithPrincipal(r.Context(), p)))
			})
		}
	}

	BeforeEach(func() {
		svc = user.NewService(newRepo(), &recordingTerminator{}, bcrypt.MinCost, quiet)
		h := user.NewHandler(transport.NewBaseHandler(quiet), svc)

		r := chi.NewRouter()
		r.Use(withActor(admin))
		r.Get("/users/me", h.GetCurrentUser)
		r.Get("/admin/users", h.ListUsers)
		r.Post("/admin/users", h.CreateUser)
		r.Get("/admin/users/{id}", h.GetUser)
		r.Put("/admin/users/{id}", h.UpdateUser)
		r.Delete("/admin/users/{id}", h.DeleteUser)
		router = r
	})

	do := func(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var out map[string]interface{}
		Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
		return w, out
	}

	It("creates, reads and deactivates a user", func() {
		w, body := do(http.MethodPost, "/admin/users", map[string]interface{}{
			"username": "nurse.eve", "password": "password123", "role": "nurse", "wards": []string{"W1"},
		})
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(body["success"]).To(BeTrue())
		data := body["data"].(map[string]interface{})
		Expect(data).NotTo(HaveKey("PasswordHash"))
		id := strconv.Itoa(int(data["id"].(float64)))

		w, body = do(http.MethodGet, "/admin/users/"+id, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body["data"].(map[string]interface{})["username"]).To(Equal("nurse.eve"))

		w, body = do(http.MethodDelete, "/admin/users/"+id, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body["success"]).To(BeTrue())

		w, body = do(http.MethodGet, "/admin/users?active=false", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body["data"].(map[string]interface{})["total"]).To(BeEquivalentTo(1))
	})

	It("reports duplicates as a failure envelope", func() {
		payload := map[string]interface{}{"username": "dup.user", "password": "password123", "role": "nurse"}
		w, _ := do(http.MethodPost, "/admin/users", payload)
		Expect(w.Code).To(Equal(http.StatusCreated))

		w, body := do(http.MethodPost, "/admin/users", payload)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(body["success"]).To(BeFalse())
		Expect(body["error"].(map[string]interface{})["code"]).To(Equal("USERNAME_TAKEN"))
	})

	It("rejects malformed ids", func() {
		w, body := do(http.MethodGet, "/admin/users/abc", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(body["success"]).To(BeFalse())
	})

	It("returns the caller on /users/me", func() {
		created, err := svc.Create(context.Background(), admin, user.CreateUserDTO{Username: "me.user", Password: "password123", Role: role.Nurse})
		Expect(err).NotTo(HaveOccurred())

		h := user.NewHandler(transport.NewBaseHandler(quiet), svc)
		r := chi.NewRouter()
		r.Use(withActor(&internal.Principal{UserID: created.ID, Role: role.Nurse}))
		r.Get("/users/me", h.GetCurrentUser)
		router = r

		w, body := do(http.MethodGet, "/users/me", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body["data"].(map[string]interface{})["username"]).To(Equal("me.user"))
	})
})
