package domain_test

import (
	"siteflow/domain"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("DocStatus", func() {
	Describe("IsLocked", func() {
		It("should lock approved and cancelled documents only", func() {
			Expect(domain.IsLocked(domain.DocStatusDraft)).To(BeFalse())
			Expect(domain.IsLocked(domain.DocStatusPending)).To(BeFalse())
			Expect(domain.IsLocked(domain.DocStatusRejected)).To(BeFalse())

			Expect(domain.IsLocked(domain.DocStatusApproved)).To(BeTrue())
			Expect(domain.IsLocked(domain.DocStatusCancelled)).To(BeTrue())
		})
	})

	Describe("CanEdit", func() {
		It("should be the complement of IsLocked", func() {
			for _, s := range []domain.DocStatus{domain.DocStatusDraft, domain.DocStatusPending,
				domain.DocStatusApproved, domain.DocStatusRejected, domain.DocStatusCancelled} {
				Expect(domain.CanEdit(s)).To(Equal(!domain.IsLocked(s)))
			}
		})
	})

	Describe("IsValid", func() {
		It("should refuse unknown statuses", func() {
			Expect(domain.DocStatus("Draft").IsValid()).To(BeTrue())
			Expect(domain.DocStatus("Foo").IsValid()).To(BeFalse())
			Expect(domain.DocStatus("").IsValid()).To(BeFalse())
		})
	})
})

var _ = Describe("RequestStatus", func() {
	Describe("IsTerminal", func() {
		It("should report approved and rejected as terminal", func() {
			Expect(domain.RequestStatusPending.IsTerminal()).To(BeFalse())
			Expect(domain.RequestStatusApproved.IsTerminal()).To(BeTrue())
			Expect(domain.RequestStatusRejected.IsTerminal()).To(BeTrue())
		})
	})
})

var _ = Describe("ApprovalRequestLevel", func() {
	Describe("EffectiveRole", func() {
		It("should return the configured role when the level is not escalated", func() {
			l := domain.ApprovalRequestLevel{Level: 2, Role: domain.RoleProjectManager, EscalateToRole: domain.RoleDirector}
			Expect(l.EffectiveRole(0)).To(Equal(domain.RoleProjectManager))
			Expect(l.EffectiveRole(1)).To(Equal(domain.RoleProjectManager))
		})

		It("should return the escalation role once the level is escalated", func() {
			l := domain.ApprovalRequestLevel{Level: 2, Role: domain.RoleProjectManager, EscalateToRole: domain.RoleDirector}
			Expect(l.EffectiveRole(2)).To(Equal(domain.RoleDirector))
			Expect(l.EffectiveRole(3)).To(Equal(domain.RoleDirector))
		})

		It("should keep the configured role when the level has no escalation target", func() {
			l := domain.ApprovalRequestLevel{Level: 1, Role: domain.RoleApprover}
			Expect(l.EffectiveRole(1)).To(Equal(domain.RoleApprover))
		})
	})
})
