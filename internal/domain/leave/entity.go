package leave

type LeaveRequestStatus string

// Only approved unpaid leave reduces pay.
const LeaveRequestStatusApproved LeaveRequestStatus = "approved"
