package server

// SessionCookieName 是控制台登录会话的 cookie 名。
const SessionCookieName = "lessondata_session"
